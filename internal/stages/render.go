package stages

import (
	"fmt"
	"strings"

	"github.com/deskmind/orchestrator/internal/workflow"
)

const (
	maxTrainsShown  = 3
	filePreviewSize = 500
)

// renderDirect produces the final answer for tool results that need no model
// involvement. It returns "" when nothing renders directly.
func renderDirect(s *workflow.State) string {
	var parts []string
	if r, ok := s.ToolResultFor("date_info"); ok && r.Success {
		parts = append(parts, renderDate(r))
	}
	if r, ok := s.ToolResultFor("time_info"); ok && r.Success {
		parts = append(parts, renderTime(r))
	}
	if r, ok := s.ToolResultFor("weather"); ok && r.Success {
		parts = append(parts, renderWeather(r))
	}
	if r, ok := s.ToolResultFor("train_tickets"); ok {
		parts = append(parts, renderTrains(r))
	}
	return strings.Join(parts, "\n")
}

func renderTime(r workflow.ToolResult) string {
	t := dataString(r, "time")
	tz := dataString(r, "timezone")
	if tz == "" {
		tz = "本地时区"
	}
	return fmt.Sprintf("当前时间是：%s（%s）", t, tz)
}

func renderDate(r workflow.ToolResult) string {
	return fmt.Sprintf("今天是：%s %s", dataString(r, "date"), dataString(r, "weekday"))
}

func renderWeather(r workflow.ToolResult) string {
	return fmt.Sprintf("%s当前天气：%s，气温 %s°C（体感 %s°C），湿度 %s%%，风速 %s米/秒（数据来源：%s）",
		dataString(r, "city"),
		dataString(r, "description"),
		dataString(r, "temperature"),
		dataString(r, "feels_like"),
		dataString(r, "humidity"),
		dataString(r, "wind_speed"),
		dataString(r, "source"),
	)
}

func renderTrains(r workflow.ToolResult) string {
	if !r.Success {
		return "火车票查询失败：" + r.Error
	}

	trains := dataSlice(r, "trains")
	if len(trains) == 0 {
		return fmt.Sprintf("未查询到 %s 到 %s 的车次。", dataString(r, "from_station"), dataString(r, "to_station"))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "为您查询到 %s 到 %s（%s）的车次：\n",
		dataString(r, "from_station"), dataString(r, "to_station"), dataString(r, "date"))

	shown := trains
	if len(shown) > maxTrainsShown {
		shown = shown[:maxTrainsShown]
	}
	for _, t := range shown {
		fmt.Fprintf(&sb, "%s（%s）%s 出发，%s 到达，历时 %s，二等座 %s\n",
			fieldString(t, "train_no"),
			fieldString(t, "train_type"),
			fieldString(t, "departure_time"),
			fieldString(t, "arrival_time"),
			fieldString(t, "duration"),
			secondClassPrice(t),
		)
	}
	if len(trains) > maxTrainsShown {
		fmt.Fprintf(&sb, "（共%d个车次，仅显示前%d个）", len(trains), maxTrainsShown)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderFile(r workflow.ToolResult) string {
	if !r.Success {
		return "无法读取文件：" + r.Error
	}
	content := dataString(r, "content")
	runes := []rune(content)
	if len(runes) > filePreviewSize {
		content = string(runes[:filePreviewSize]) + "\n...（内容过长，已截断）"
	}
	return fmt.Sprintf("文件 %s 的内容：\n%s", dataString(r, "path"), content)
}

func renderOrder(r workflow.ToolResult) string {
	if !r.Success {
		return "订单查询失败：" + r.Error
	}
	s := fmt.Sprintf("订单 %s：%s，状态：%s，金额：%s，下单时间：%s",
		dataString(r, "order_id"),
		dataString(r, "product"),
		dataString(r, "status"),
		dataString(r, "amount"),
		dataString(r, "created_at"),
	)
	if logistics := dataString(r, "logistics"); logistics != "" {
		s += "，物流：" + logistics
	}
	return s
}

// renderToolContext flattens every attempted tool result into a prompt block
// for the solution model. Failures are included so the model can acknowledge
// them instead of inventing data.
func renderToolContext(s *workflow.State) string {
	if len(s.ToolResults) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("工具查询结果：\n")
	for _, kind := range orderedKinds(s) {
		r := s.ToolResults[kind]
		switch kind {
		case "time_info":
			sb.WriteString(renderTime(r))
		case "date_info":
			sb.WriteString(renderDate(r))
		case "weather":
			if r.Success {
				sb.WriteString(renderWeather(r))
			} else {
				sb.WriteString("天气查询失败：" + r.Error)
			}
		case "train_tickets":
			sb.WriteString(renderTrains(r))
		case "file_content":
			sb.WriteString(renderFile(r))
		case "order_info":
			sb.WriteString(renderOrder(r))
		default:
			if r.Success {
				fmt.Fprintf(&sb, "%s：%v", kind, r.Data)
			} else {
				fmt.Fprintf(&sb, "%s 查询失败：%s", kind, r.Error)
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// orderedKinds gives tool results a stable presentation order.
var kindOrder = []string{
	"date_info", "time_info", "weather", "address", "poi_search",
	"train_tickets", "knowledge_base", "file_content", "order_info",
}

func orderedKinds(s *workflow.State) []string {
	out := make([]string, 0, len(s.ToolResults))
	for _, k := range kindOrder {
		if _, ok := s.ToolResults[k]; ok {
			out = append(out, k)
		}
	}
	for k := range s.ToolResults {
		known := false
		for _, o := range kindOrder {
			if k == o {
				known = true
				break
			}
		}
		if !known {
			out = append(out, k)
		}
	}
	return out
}

func dataString(r workflow.ToolResult, key string) string {
	return fieldString(r.Data, key)
}

// fieldString stringifies a data field, tolerating the numeric types a JSON
// round trip produces.
func fieldString(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.1f", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// dataSlice reads a slice of objects, tolerating both the in-process shape
// and the post-checkpoint JSON shape.
func dataSlice(r workflow.ToolResult, key string) []map[string]interface{} {
	switch v := r.Data[key].(type) {
	case []map[string]interface{}:
		return v
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func secondClassPrice(t map[string]interface{}) string {
	sc, ok := t["second_class"].(map[string]interface{})
	if !ok {
		return ""
	}
	return fieldString(sc, "price")
}
