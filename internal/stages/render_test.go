package stages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deskmind/orchestrator/internal/workflow"
)

func timeResult() workflow.ToolResult {
	return workflow.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"time":     "2024-01-15 10:30:00",
			"timezone": "Asia/Shanghai",
		},
	}
}

func TestRenderTime(t *testing.T) {
	assert.Equal(t, "当前时间是：2024-01-15 10:30:00（Asia/Shanghai）", renderTime(timeResult()))
}

// The timezone label is always present; a result that names no timezone is
// labeled as local time.
func TestRenderTimeDefaultsTimezoneLabel(t *testing.T) {
	local := workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"time": "2024-01-15 10:30:00", "timezone": "本地时区"},
	}
	assert.Equal(t, "当前时间是：2024-01-15 10:30:00（本地时区）", renderTime(local))

	missing := workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"time": "2024-01-15 10:30:00"},
	}
	assert.Equal(t, "当前时间是：2024-01-15 10:30:00（本地时区）", renderTime(missing))
}

func TestRenderDate(t *testing.T) {
	r := workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"date": "2024-01-15", "weekday": "星期一"},
	}
	assert.Equal(t, "今天是：2024-01-15 星期一", renderDate(r))
}

func TestRenderWeather(t *testing.T) {
	r := workflow.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"city":        "北京",
			"description": "晴",
			"temperature": "15",
			"feels_like":  "13",
			"humidity":    "40",
			"wind_speed":  "3.5",
			"source":      "模拟数据",
		},
	}
	got := renderWeather(r)
	assert.Equal(t, "北京当前天气：晴，气温 15°C（体感 13°C），湿度 40%，风速 3.5米/秒（数据来源：模拟数据）", got)
}

func trainResult(n int) workflow.ToolResult {
	trains := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		trains = append(trains, map[string]interface{}{
			"train_no":       "G1",
			"train_type":     "高铁",
			"departure_time": "07:00",
			"arrival_time":   "11:38",
			"duration":       "4小时38分",
			"second_class":   map[string]interface{}{"available": true, "price": "¥553"},
		})
	}
	return workflow.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"from_station": "北京",
			"to_station":   "上海",
			"date":         "2024-01-16",
			"trains":       trains,
		},
	}
}

func TestRenderTrainsTruncatesToThree(t *testing.T) {
	got := renderTrains(trainResult(5))
	assert.Equal(t, 3, strings.Count(got, "G1（高铁）"))
	assert.Contains(t, got, "（共5个车次，仅显示前3个）")
}

func TestRenderTrainsNoTruncationNote(t *testing.T) {
	got := renderTrains(trainResult(2))
	assert.Equal(t, 2, strings.Count(got, "G1（高铁）"))
	assert.NotContains(t, got, "仅显示")
}

func TestRenderTrainsFailure(t *testing.T) {
	r := workflow.ToolResult{Success: false, Error: "接口超时"}
	assert.Equal(t, "火车票查询失败：接口超时", renderTrains(r))
}

func TestRenderTrainsEmpty(t *testing.T) {
	got := renderTrains(trainResult(0))
	assert.Contains(t, got, "未查询到")
}

func TestRenderFileTruncatesPreview(t *testing.T) {
	long := strings.Repeat("错", 600)
	r := workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"path": "/app/logs/app.log", "content": long},
	}
	got := renderFile(r)
	assert.Contains(t, got, strings.Repeat("错", 500))
	assert.NotContains(t, got, strings.Repeat("错", 501))
	assert.Contains(t, got, "已截断")
}

func TestRenderFileFailure(t *testing.T) {
	r := workflow.ToolResult{Success: false, Error: "文件不存在，请检查文件路径是否正确"}
	assert.Equal(t, "无法读取文件：文件不存在，请检查文件路径是否正确", renderFile(r))
}

func TestRenderDirectCombinesResults(t *testing.T) {
	s := workflow.NewState("s1", "u1", "现在几点，今天几号", nil)
	s.AddToolResult("time_info", timeResult())
	s.AddToolResult("date_info", workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"date": "2024-01-15", "weekday": "星期一"},
	})

	got := renderDirect(s)
	// Date leads, then time, one per line.
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "今天是")
	assert.Contains(t, lines[1], "当前时间是")
}

func TestRenderDirectEmptyWithoutRenderableResults(t *testing.T) {
	s := workflow.NewState("s1", "u1", "帮我查订单", nil)
	s.AddToolResult("order_info", workflow.ToolResult{Success: true, Data: map[string]interface{}{}})
	assert.Empty(t, renderDirect(s))
}

func TestRenderToolContextIncludesFailures(t *testing.T) {
	s := workflow.NewState("s1", "u1", "查天气和订单", nil)
	s.AddToolResult("weather", workflow.ToolResult{Success: false, Error: "api down"})
	s.AddToolResult("order_info", workflow.ToolResult{
		Success: true,
		Data:    map[string]interface{}{"order_id": "202401150001", "product": "机械键盘", "status": "运输中"},
	})

	got := renderToolContext(s)
	assert.Contains(t, got, "天气查询失败：api down")
	assert.Contains(t, got, "订单 202401150001")
	assert.Contains(t, got, "机械键盘")
	assert.Contains(t, got, "运输中")
}

// Successful lookups render every order field the provider emits.
func TestRenderOrderSuccess(t *testing.T) {
	r := workflow.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"order_id":   "202401150001",
			"product":    "无线降噪耳机",
			"status":     "已发货",
			"amount":     "¥899.00",
			"created_at": "2024-01-15 10:23:45",
			"logistics":  "顺丰速运 SF1390268805",
		},
	}
	assert.Equal(t,
		"订单 202401150001：无线降噪耳机，状态：已发货，金额：¥899.00，下单时间：2024-01-15 10:23:45，物流：顺丰速运 SF1390268805",
		renderOrder(r))
}

func TestRenderOrderOmitsEmptyLogistics(t *testing.T) {
	r := workflow.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"order_id":   "202401180002",
			"product":    "机械键盘",
			"status":     "待付款",
			"amount":     "¥499.00",
			"created_at": "2024-01-18 20:01:12",
			"logistics":  "",
		},
	}
	got := renderOrder(r)
	assert.Equal(t, "订单 202401180002：机械键盘，状态：待付款，金额：¥499.00，下单时间：2024-01-18 20:01:12", got)
	assert.NotContains(t, got, "物流")
}
