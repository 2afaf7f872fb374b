package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/internal"
	"sjsage522/consoledealworker/internal/listing"
	"sjsage522/consoledealworker/internal/runstate"
	"sjsage522/consoledealworker/internal/source"
	"sjsage522/consoledealworker/internal/store"
	"sjsage522/consoledealworker/internal/vision"
	"sjsage522/consoledealworker/services/cache"
	"sjsage522/consoledealworker/services/publisher"
	"sjsage522/consoledealworker/services/worker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This is a simple test HTML that mimics a marketplace search page
const testHTML = `
<!DOCTYPE html>
<html>
<body>
    <ol>
        <li class="cl-static-search-result">
            <a href="/vgm/d/sp/1.html">
                <img src="/img/sp.jpg">
                <div class="title">Nintendo Game Boy Advance SP Console</div>
                <div class="price">$45</div>
            </a>
        </li>
        <li class="cl-static-search-result">
            <a href="/vgm/d/ds/2.html">
                <img src="/img/games.jpg">
                <div class="title">Nintendo DS Lite console bundle</div>
                <div class="price">$25</div>
            </a>
        </li>
        <li class="cl-static-search-result">
            <a href="/vgm/d/3ds/3.html">
                <div class="title">3DS XL shell only, no motherboard</div>
                <div class="price">$20</div>
            </a>
        </li>
        <li class="cl-static-search-result">
            <a href="/vgm/d/gbc/4.html">
                <div class="title">Game Boy Color console</div>
                <div class="price">$35</div>
            </a>
        </li>
    </ol>
</body>
</html>
`

// visionLabels are the canned label sets served by the fake vision endpoint
var visionLabels = map[string][]string{
	"/img/sp.jpg":    {"Handheld game console", "Gadget", "Game Boy Advance"},
	"/img/games.jpg": {"Video game cartridge", "Packaging"},
}

// RecordingPublisher implements publisher.Publisher and keeps every message
type RecordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

// Ensure RecordingPublisher implements publisher.Publisher
var _ publisher.Publisher = (*RecordingPublisher)(nil)

func (p *RecordingPublisher) Publish(key string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, append([]byte(nil), message...))
	return nil
}

func (p *RecordingPublisher) TrimStreams() error { return nil }

func (p *RecordingPublisher) Close() error { return nil }

func newTestMarket(t *testing.T, visionCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/vga", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, testHTML)
	})
	mux.HandleFunc("/vision", func(w http.ResponseWriter, r *http.Request) {
		visionCalls.Add(1)
		var req struct {
			Requests []struct {
				Image struct {
					Source struct {
						ImageURI string `json:"imageUri"`
					} `json:"source"`
				} `json:"image"`
			} `json:"requests"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Requests) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		uri := req.Requests[0].Image.Source.ImageURI
		var labels []map[string]string
		for path, names := range visionLabels {
			if strings.HasSuffix(uri, path) {
				for _, n := range names {
					labels = append(labels, map[string]string{"description": n})
				}
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"responses": []interface{}{map[string]interface{}{"labelAnnotations": labels}},
		})
	})
	return httptest.NewServer(mux)
}

func newIntegrationWorker(t *testing.T, server *httptest.Server, pub publisher.Publisher, seenPath string) (*worker.Worker, *store.Store) {
	t.Helper()

	filters, err := config.DefaultFilters()
	require.NoError(t, err)

	cfg := config.Config{CraigslistURL: server.URL, CheckInterval: time.Minute, VisionAPIKey: "test-key"}
	srcCfg := source.BuiltinConfigs(cfg)[0]
	srcCfg.SearchTerms = []string{"gameboy"}
	srcCfg.Selectors.Image = "img"
	memCache := cache.NewMemoryCache()
	src := source.NewHTMLSource(srcCfg, memCache, nil)

	google := vision.NewGoogleVision("test-key", server.URL+"/vision", vision.NewScorer(filters.Vision))
	image := vision.NewFailOpen(vision.NewCached(google, memCache, time.Hour), 2*time.Second)

	seen := store.New(store.NewFileBackend(seenPath))
	require.NoError(t, seen.Load(context.Background()))

	settings := config.DefaultSettings(cfg)
	settings.Platforms = map[string]bool{"craigslist": true}

	w := worker.NewWorker(context.Background(), []source.Source{src},
		internal.Dependencies{Cache: memCache, Publisher: pub, Store: seen, Image: image},
		filters, settings, runstate.New(), time.Minute)
	return w, seen
}

// TestIntegration runs the whole flow against a fake marketplace and vision
// service
func TestIntegration(t *testing.T) {
	var visionCalls atomic.Int32
	server := newTestMarket(t, &visionCalls)
	defer server.Close()

	seenPath := filepath.Join(t.TempDir(), "seen_listings.json")
	pub := &RecordingPublisher{}
	w, _ := newIntegrationWorker(t, server, pub, seenPath)

	res, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Report.Accepted)
	assert.Equal(t, 1, res.Report.Reasons[listing.ReasonImageRejected])
	assert.Equal(t, 1, res.Report.Reasons[listing.ReasonExclusionMatch])
	require.Len(t, res.New, 2)
	assert.Equal(t, int32(2), visionCalls.Load())

	var alerts []listing.Alert
	for _, msg := range pub.messages {
		var a listing.Alert
		require.NoError(t, json.Unmarshal(msg, &a))
		alerts = append(alerts, a)
	}
	require.Len(t, alerts, 2)
	assert.Equal(t, listing.Alert{
		Title:     "Nintendo Game Boy Advance SP Console",
		Price:     "45.00",
		Threshold: "80.00",
		Platform:  "Craigslist",
		Category:  "gba sp",
		Link:      server.URL + "/vgm/d/sp/1.html",
		ImageRef:  server.URL + "/img/sp.jpg",
	}, alerts[0])
	assert.Equal(t, "game boy color", alerts[1].Category)

	// A restarted worker remembers what it already alerted on
	w2, seen := newIntegrationWorker(t, server, pub, seenPath)
	assert.Len(t, seen.Snapshot(), 2)
	res, err = w2.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.New)
	assert.Len(t, pub.messages, 2)
}

// TestIntegrationRedis publishes through a real Redis stream
func TestIntegrationRedis(t *testing.T) {
	ctx := context.Background()
	redisAddr := "localhost:6379"
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr, DB: 0})
	defer redisClient.Close()

	// Check if Redis is available by attempting a ping, skip test if not
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping integration test")
	}

	var visionCalls atomic.Int32
	server := newTestMarket(t, &visionCalls)
	defer server.Close()

	redisPublisher := publisher.NewRedisPublisher(ctx, redisAddr, 0, "test_console_integration", 1, 100)
	defer redisPublisher.Close()
	stream := redisPublisher.Stream(0)
	redisClient.Del(ctx, stream)
	defer redisClient.Del(ctx, stream)

	w, _ := newIntegrationWorker(t, server, redisPublisher, filepath.Join(t.TempDir(), "seen.json"))
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	entries, err := redisClient.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	encoded, ok := entries[0].Values[publisher.AlertKey].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var alert listing.Alert
	require.NoError(t, json.Unmarshal(decoded, &alert))
	assert.Equal(t, "gba sp", alert.Category)
}
