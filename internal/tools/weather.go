package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/circuitbreaker"
)

const openWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// WeatherProvider answers current-conditions lookups. With an OpenWeatherMap
// API key it calls the live API through a circuit breaker; otherwise, or when
// the API is unreachable, it serves deterministic mock data so the workflow
// still gets a usable answer.
type WeatherProvider struct {
	apiKey  string
	baseURL string
	client  *circuitbreaker.HTTPWrapper
	logger  *zap.Logger
}

// NewWeatherProvider builds the provider. An empty apiKey selects mock mode.
func NewWeatherProvider(apiKey string, logger *zap.Logger) *WeatherProvider {
	return &WeatherProvider{
		apiKey:  apiKey,
		baseURL: openWeatherURL,
		client:  circuitbreaker.NewHTTPWrapper(nil, "openweather", circuitbreaker.DefaultConfig(), logger),
		logger:  logger,
	}
}

func (p *WeatherProvider) Kind() string { return "weather" }

// Invoke expects args["city"], optionally args["country"].
func (p *WeatherProvider) Invoke(ctx context.Context, args map[string]string) Result {
	city := args["city"]
	if city == "" {
		return Fail("weather lookup requires a city")
	}

	if p.apiKey == "" {
		return p.mock(city)
	}

	result, err := p.queryOpenWeather(ctx, city, args["country"])
	if err != nil {
		p.logger.Warn("OpenWeatherMap lookup failed, serving mock data",
			zap.String("city", city),
			zap.Error(err),
		)
		return p.mock(city)
	}
	return result
}

func (p *WeatherProvider) queryOpenWeather(ctx context.Context, city, country string) (Result, error) {
	q := city
	if country != "" {
		q = city + "," + country
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("appid", p.apiKey)
	params.Set("units", "metric")
	params.Set("lang", "zh_cn")

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
		return Result{}, fmt.Errorf("openweather status %d", resp.StatusCode)
	}

	var body struct {
		Name    string `json:"name"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("decode openweather response: %w", err)
	}

	description := ""
	if len(body.Weather) > 0 {
		description = body.Weather[0].Description
		if description == "" {
			description = body.Weather[0].Main
		}
	}
	name := body.Name
	if name == "" {
		name = city
	}
	return Ok(map[string]interface{}{
		"city":        name,
		"temperature": body.Main.Temp,
		"feels_like":  body.Main.FeelsLike,
		"humidity":    body.Main.Humidity,
		"wind_speed":  body.Wind.Speed,
		"description": description,
		"source":      "OpenWeatherMap",
	}), nil
}

// mock produces stable pseudo-weather derived from the city name, so repeated
// queries for one city agree within a process.
func (p *WeatherProvider) mock(city string) Result {
	h := 0
	for _, r := range city {
		h = h*31 + int(r)
	}
	if h < 0 {
		h = -h
	}
	temp := 10 + h%20
	descriptions := []string{"晴", "多云", "阴", "小雨"}
	return Ok(map[string]interface{}{
		"city":        city,
		"temperature": float64(temp),
		"feels_like":  float64(temp - 1),
		"humidity":    40 + h%40,
		"wind_speed":  float64(1 + h%5),
		"description": descriptions[h%len(descriptions)],
		"source":      "模拟数据",
	})
}
