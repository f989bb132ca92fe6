package dispatch

import (
	"regexp"
	"strings"
)

// Cities scanned before falling back to positional extraction. Ordered
// roughly by how often they show up in support transcripts.
var commonCities = []string{
	"北京", "上海", "广州", "深圳", "杭州", "南京", "武汉", "成都",
	"重庆", "西安", "天津", "苏州", "长沙", "郑州", "青岛", "大连",
	"宁波", "厦门", "福州", "济南", "合肥", "昆明", "哈尔滨", "沈阳",
}

var orderNumberPattern = regexp.MustCompile(`\d{6,}`)

// paramAlias returns the first non-empty value among aliases for the same
// parameter. The analysis stage may emit either Chinese or English key names.
func paramAlias(params map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(params[k]); v != "" {
			return v
		}
	}
	return ""
}

func resolveWeatherArgs(utterance string, params map[string]string) (map[string]string, bool) {
	city := paramAlias(params, "城市", "city", "地点")
	if city == "" {
		city = cityFromText(utterance)
	}
	if city == "" {
		return nil, false
	}
	args := map[string]string{"city": city}
	if country := paramAlias(params, "国家", "country"); country != "" {
		args["country"] = country
	}
	return args, true
}

// cityFromText scans for a known city first, then falls back to whatever
// immediately precedes "天气" in the utterance.
func cityFromText(text string) string {
	for _, c := range commonCities {
		if strings.Contains(text, c) {
			return c
		}
	}
	idx := strings.Index(text, "天气")
	if idx <= 0 {
		return ""
	}
	prefix := text[:idx]
	for _, filler := range []string{"查询", "查一下", "查", "看看", "今天", "现在", "的"} {
		prefix = strings.ReplaceAll(prefix, filler, "")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	// Keep only the trailing run after punctuation, if any.
	runes := []rune(prefix)
	if len(runes) > 10 {
		runes = runes[len(runes)-10:]
	}
	return string(runes)
}

func resolveAddressArgs(utterance string, params map[string]string) (map[string]string, bool) {
	address := paramAlias(params, "地址", "位置", "address")
	if address == "" {
		address = strings.TrimSpace(utterance)
	}
	if address == "" {
		return nil, false
	}
	args := map[string]string{"address": address}
	if city := paramAlias(params, "城市", "city"); city != "" {
		args["city"] = city
	}
	return args, true
}

func resolvePOIArgs(params map[string]string) (map[string]string, bool) {
	keywords := paramAlias(params, "关键词", "keywords")
	if keywords == "" {
		return nil, false
	}
	args := map[string]string{"keywords": keywords}
	if city := paramAlias(params, "城市", "city"); city != "" {
		args["city"] = city
	}
	return args, true
}

var stationSeparators = []string{"到", "->", "-", "至"}

func resolveTrainArgs(utterance string, params map[string]string) (map[string]string, bool) {
	from := paramAlias(params, "出发站", "from_station", "起点")
	to := paramAlias(params, "到达站", "to_station", "终点")
	if from == "" || to == "" {
		from, to = stationsFromText(utterance)
	}
	if from == "" || to == "" {
		return nil, false
	}
	args := map[string]string{"from_station": from, "to_station": to}
	if date := paramAlias(params, "日期", "date"); date != "" {
		args["date"] = date
	}
	return args, true
}

// stationsFromText splits "北京到上海的火车票" style phrases into an
// origin/destination pair, stripping common request filler.
func stationsFromText(text string) (string, string) {
	for _, sep := range stationSeparators {
		parts := strings.SplitN(text, sep, 2)
		if len(parts) != 2 {
			continue
		}
		from := strings.TrimSpace(parts[0])
		to := strings.TrimSpace(parts[1])
		for _, prefix := range []string{"我想买", "我想查", "我想", "帮我查", "查询", "查一下", "查", "买"} {
			from = strings.TrimPrefix(from, prefix)
		}
		for _, suffix := range []string{"的火车票", "的车票", "火车票", "车票", "的高铁", "高铁", "的"} {
			to = strings.TrimSuffix(to, suffix)
		}
		from = strings.TrimSpace(from)
		to = strings.TrimSpace(to)
		if from != "" && to != "" {
			return from, to
		}
	}
	return "", ""
}

func resolveTimezoneArgs(params map[string]string) map[string]string {
	args := map[string]string{}
	if tz := paramAlias(params, "时区", "timezone"); tz != "" {
		args["timezone"] = tz
	}
	return args
}

func resolveKnowledgeArgs(utterance string, params map[string]string) map[string]string {
	query := paramAlias(params, "查询", "query")
	if query == "" {
		query = utterance
	}
	return map[string]string{"query": query}
}

func resolveFileArgs(utterance string, params map[string]string, defaultLogPath string) (map[string]string, bool) {
	path := paramAlias(params, "文件路径", "file_path", "路径", "path")
	if path == "" && defaultLogPath != "" {
		if strings.Contains(utterance, "日志") || strings.Contains(strings.ToLower(utterance), "log") {
			path = defaultLogPath
		}
	}
	if path == "" {
		return nil, false
	}
	return map[string]string{"file_path": path}, true
}

func resolveOrderArgs(utterance string, params map[string]string) (map[string]string, bool) {
	orderID := paramAlias(params, "订单号", "order_id", "订单")
	if orderID == "" {
		orderID = orderNumberPattern.FindString(utterance)
	}
	if orderID == "" {
		return nil, false
	}
	return map[string]string{"order_id": orderID}, true
}
