package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/circuitbreaker"
)

const (
	amapGeocodeURL = "https://restapi.amap.com/v3/geocode/geo"
	amapPOIURL     = "https://restapi.amap.com/v3/place/text"
)

// AddressProvider geocodes a free-text address via the AMap API, with a mock
// fallback when unconfigured.
type AddressProvider struct {
	apiKey string
	client *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

// NewAddressProvider builds the provider. An empty apiKey selects mock mode.
func NewAddressProvider(apiKey string, logger *zap.Logger) *AddressProvider {
	return &AddressProvider{
		apiKey: apiKey,
		client: circuitbreaker.NewHTTPWrapper(nil, "amap-geocode", circuitbreaker.DefaultConfig(), logger),
		logger: logger,
	}
}

func (p *AddressProvider) Kind() string { return "address" }

// Invoke expects args["address"], optionally args["city"].
func (p *AddressProvider) Invoke(ctx context.Context, args map[string]string) Result {
	address := args["address"]
	if address == "" {
		return Fail("address lookup requires an address")
	}
	if p.apiKey == "" {
		return Ok(map[string]interface{}{
			"address":  address,
			"location": "116.397428,39.909187",
			"city":     args["city"],
			"source":   "模拟数据",
		})
	}

	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("address", address)
	if city := args["city"]; city != "" {
		params.Set("city", city)
	}

	body, err := amapGet(ctx, p.client, amapGeocodeURL, params)
	if err != nil {
		p.logger.Warn("AMap geocode failed", zap.String("address", address), zap.Error(err))
		return Fail(fmt.Sprintf("geocode failed: %v", err))
	}

	var parsed struct {
		Status   string `json:"status"`
		Geocodes []struct {
			FormattedAddress string `json:"formatted_address"`
			Location         string `json:"location"`
			City             string `json:"city"`
		} `json:"geocodes"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Status != "1" || len(parsed.Geocodes) == 0 {
		return Fail("geocode returned no match")
	}
	g := parsed.Geocodes[0]
	return Ok(map[string]interface{}{
		"address":  g.FormattedAddress,
		"location": g.Location,
		"city":     g.City,
		"source":   "高德地图",
	})
}

// POIProvider searches points of interest by keyword via the AMap API.
type POIProvider struct {
	apiKey string
	client *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

// NewPOIProvider builds the provider. An empty apiKey selects mock mode.
func NewPOIProvider(apiKey string, logger *zap.Logger) *POIProvider {
	return &POIProvider{
		apiKey: apiKey,
		client: circuitbreaker.NewHTTPWrapper(nil, "amap-poi", circuitbreaker.DefaultConfig(), logger),
		logger: logger,
	}
}

func (p *POIProvider) Kind() string { return "poi_search" }

// Invoke expects args["keywords"], optionally args["city"].
func (p *POIProvider) Invoke(ctx context.Context, args map[string]string) Result {
	keywords := args["keywords"]
	if keywords == "" {
		return Fail("POI search requires keywords")
	}
	if p.apiKey == "" {
		return Ok(map[string]interface{}{
			"keywords": keywords,
			"pois": []map[string]interface{}{
				{"name": keywords + "（示例一）", "address": "示例地址1", "distance": "500m"},
				{"name": keywords + "（示例二）", "address": "示例地址2", "distance": "1.2km"},
			},
			"source": "模拟数据",
		})
	}

	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("keywords", keywords)
	if city := args["city"]; city != "" {
		params.Set("city", city)
	}

	body, err := amapGet(ctx, p.client, amapPOIURL, params)
	if err != nil {
		p.logger.Warn("AMap POI search failed", zap.String("keywords", keywords), zap.Error(err))
		return Fail(fmt.Sprintf("POI search failed: %v", err))
	}

	var parsed struct {
		Status string `json:"status"`
		POIs   []struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"pois"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Status != "1" {
		return Fail("POI search returned no match")
	}
	pois := make([]map[string]interface{}, 0, len(parsed.POIs))
	for _, poi := range parsed.POIs {
		pois = append(pois, map[string]interface{}{"name": poi.Name, "address": poi.Address})
	}
	return Ok(map[string]interface{}{
		"keywords": keywords,
		"pois":     pois,
		"source":   "高德地图",
	})
}

func amapGet(ctx context.Context, client *circuitbreaker.HTTPWrapper, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amap status %d", resp.StatusCode)
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read amap response: %w", err)
	}
	return buf, nil
}
