package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/circuitbreaker"
)

// TrainProvider looks up rail itineraries between two stations. With an API
// key it queries the ticket API through a circuit breaker; without one it
// serves a deterministic mock schedule.
type TrainProvider struct {
	apiKey  string
	baseURL string
	client  *circuitbreaker.HTTPWrapper
	logger  *zap.Logger
	now     func() time.Time
}

// NewTrainProvider builds the provider. An empty apiKey selects mock mode.
func NewTrainProvider(apiKey string, logger *zap.Logger) *TrainProvider {
	return &TrainProvider{
		apiKey:  apiKey,
		baseURL: "https://api.tianapi.com/train/index",
		client:  circuitbreaker.NewHTTPWrapper(nil, "train", circuitbreaker.DefaultConfig(), logger),
		logger:  logger,
		now:     time.Now,
	}
}

func (p *TrainProvider) Kind() string { return "train_tickets" }

// Invoke expects args["from_station"] and args["to_station"], optionally
// args["date"] (YYYY-MM-DD, defaults to tomorrow).
func (p *TrainProvider) Invoke(ctx context.Context, args map[string]string) Result {
	from := args["from_station"]
	to := args["to_station"]
	if from == "" || to == "" {
		return Fail("train lookup requires both a departure and an arrival station")
	}
	date := args["date"]
	if date == "" {
		date = p.now().AddDate(0, 0, 1).Format("2006-01-02")
	}

	if p.apiKey == "" {
		return p.mock(from, to, date)
	}

	result, err := p.queryAPI(ctx, from, to, date)
	if err != nil {
		p.logger.Warn("Train API lookup failed, serving mock schedule",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err),
		)
		return p.mock(from, to, date)
	}
	return result
}

func (p *TrainProvider) queryAPI(ctx context.Context, from, to, date string) (Result, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("from", from)
	params.Set("to", to)
	params.Set("date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("train api status %d", resp.StatusCode)
	}

	var body struct {
		Code int `json:"code"`
		List []struct {
			TrainNo       string `json:"trainno"`
			Type          string `json:"type"`
			DepartureTime string `json:"departuretime"`
			ArrivalTime   string `json:"arrivaltime"`
			CostTime      string `json:"costtime"`
			SecondSeat    string `json:"secondseat"`
		} `json:"newslist"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("decode train response: %w", err)
	}
	if body.Code != 200 {
		return Result{}, fmt.Errorf("train api code %d", body.Code)
	}

	trains := make([]map[string]interface{}, 0, len(body.List))
	for _, t := range body.List {
		trains = append(trains, map[string]interface{}{
			"train_no":       t.TrainNo,
			"train_type":     t.Type,
			"departure_time": t.DepartureTime,
			"arrival_time":   t.ArrivalTime,
			"duration":       t.CostTime,
			"second_class":   map[string]interface{}{"available": t.SecondSeat != "", "price": t.SecondSeat},
		})
	}
	return Ok(map[string]interface{}{
		"from_station": from,
		"to_station":   to,
		"date":         date,
		"trains":       trains,
		"source":       "TianAPI",
	}), nil
}

func (p *TrainProvider) mock(from, to, date string) Result {
	mk := func(no, typ, dep, arr, dur, price string) map[string]interface{} {
		return map[string]interface{}{
			"train_no":       no,
			"train_type":     typ,
			"departure_time": dep,
			"arrival_time":   arr,
			"duration":       dur,
			"second_class":   map[string]interface{}{"available": true, "price": price},
		}
	}
	trains := []map[string]interface{}{
		mk("G1", "高铁", "07:00", "11:38", "4小时38分", "¥553"),
		mk("G3", "高铁", "08:00", "12:37", "4小时37分", "¥553"),
		mk("G7", "高铁", "09:00", "13:45", "4小时45分", "¥553"),
		mk("D311", "动车", "19:24", "07:10", "11小时46分", "¥322"),
		mk("T109", "特快", "20:05", "10:40", "14小时35分", "¥177.5"),
	}
	return Ok(map[string]interface{}{
		"from_station": from,
		"to_station":   to,
		"date":         date,
		"trains":       trains,
		"note":         "模拟数据，仅供参考",
		"source":       "模拟数据",
	})
}
