// Checkout load generator with per-second outbound request throttling.
// - Concurrency is controlled by a fixed worker pool (maxConcurrentRequests)
// - Throughput is controlled by an RPS limiter (token bucket)
// - A share of requests replays an already used order_id and must come back as 400
// - Graceful shutdown on SIGINT/SIGTERM
//
// Example:
//
//	go run ./services/order-api/cmd/seed \
//	  -noOfOrders=20000 \
//	  -maxConcurrentRequests=200 \
//	  -rps=800 \
//	  -noOfUsers=500 \
//	  -duplicateRatio=0.05 \
//	  -orderApiUrl=http://localhost:8081
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
	"github.com/nimeshabuddhika/storefront-orders/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// --------- CLI flags ---------
var (
	noOfOrders            = flag.Int("noOfOrders", 100, "Total number of checkout requests to send")
	maxConcurrentRequests = flag.Int("maxConcurrentRequests", 10, "Max in-flight HTTP requests (worker pool size)")
	noOfUsers             = flag.Int("noOfUsers", 50, "Number of distinct user ids to spread orders over")
	maxItemsPerOrder      = flag.Int("maxItemsPerOrder", 5, "Max line items per order")
	maxUnitPrice          = flag.Int64("maxUnitPrice", 5000, "Max unit price in minor currency units")
	duplicateRatio        = flag.Float64("duplicateRatio", 0.0, "Share of requests that replay a used order_id (0..1)")
	orderApiURL           = flag.String("orderApiUrl", "http://localhost:8081", "Order API base URL")
	rps                   = flag.Int("rps", 200, "Global requests-per-second limit for outbound POST /api/order")
	rpsBurst              = flag.Int("rpsBurst", 0, "Burst size for the limiter (0 => equals rps)")
	httpClientTimeoutMs   = flag.Int("httpClientTimeoutMs", 4000, "Total HTTP client timeout (ms)")
)

type seedItem struct {
	ProductID   int64  `json:"product_id"`
	Quantity    int32  `json:"quantity"`
	Price       int64  `json:"price"`
	ProductName string `json:"product_name"`
}

type seedOrder struct {
	OrderID         string     `json:"order_id"`
	UserID          int64      `json:"id"`
	TotalAmount     int64      `json:"total_amount"`
	ShippingAddress string     `json:"shipping_address"`
	PaymentMethod   string     `json:"payment_method"`
	Items           []seedItem `json:"items"`
}

type job struct {
	order     seedOrder
	duplicate bool
}

type Seeder struct {
	apiURL         string
	users          int64
	maxItems       int
	maxPrice       int64
	duplicateRatio float64

	// controls
	workers    int
	limiter    *rate.Limiter
	httpClient *http.Client
	ctx        context.Context
	logger     *zap.Logger

	accepted sync.Map // order ids answered with 201

	// metrics
	enqueued   int64
	sent       int64
	ok         int64
	rejected   int64 // duplicates correctly refused
	fail       int64
	unexpected int64 // order ids accepted more than once
}

func main() {
	flag.Parse()

	pkg.InitLogger("order-seeder")
	logger := pkg.Logger
	defer logger.Sync()

	if *rps <= 0 {
		logger.Fatal("rps_must_be_positive")
	}
	if *noOfUsers <= 0 || *maxItemsPerOrder <= 0 || *maxUnitPrice <= 0 {
		logger.Fatal("users_items_and_price_must_be_positive")
	}
	if *duplicateRatio < 0 || *duplicateRatio > 1 {
		logger.Fatal("duplicate_ratio_out_of_range")
	}
	burst := *rpsBurst
	if burst <= 0 {
		burst = *rps
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	seeder := &Seeder{
		apiURL:         *orderApiURL,
		users:          int64(*noOfUsers),
		maxItems:       *maxItemsPerOrder,
		maxPrice:       *maxUnitPrice,
		duplicateRatio: *duplicateRatio,
		workers:        *maxConcurrentRequests,
		limiter:        rate.NewLimiter(rate.Limit(*rps), burst),
		httpClient: utils.NewHTTPClient(
			utils.WithClientTimeout(time.Duration(*httpClientTimeoutMs)*time.Millisecond),
			utils.WithMaxConnsPerHost(*maxConcurrentRequests),
		),
		ctx:    ctx,
		logger: logger,
	}

	start := time.Now()
	logger.Info("start_seeding",
		zap.Int("no_of_orders", *noOfOrders),
		zap.Int("workers", seeder.workers),
		zap.Int("rps", *rps),
		zap.Int("burst", burst),
		zap.Float64("duplicate_ratio", seeder.duplicateRatio),
	)

	seeder.Run(*noOfOrders)

	logger.Info("seeding_completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("enqueued", seeder.enqueued),
		zap.Int64("sent", seeder.sent),
		zap.Int64("success", seeder.ok),
		zap.Int64("duplicates_rejected", seeder.rejected),
		zap.Int64("duplicates_accepted", seeder.unexpected),
		zap.Int64("failed", seeder.fail),
	)
	if seeder.unexpected > 0 {
		os.Exit(1)
	}
}

func (s *Seeder) Run(totalOrders int) {
	jobs := make(chan job, min(totalOrders, 10000)) // bounded buffer

	// progress reporter (1s)
	var wg sync.WaitGroup
	stopProg := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(1 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-stopProg:
				return
			case <-t.C:
				s.logger.Info("progress_tick",
					zap.Int64("enqueued", atomic.LoadInt64(&s.enqueued)),
					zap.Int64("sent", atomic.LoadInt64(&s.sent)),
					zap.Int64("success", atomic.LoadInt64(&s.ok)),
					zap.Int64("failed", atomic.LoadInt64(&s.fail)),
				)
			}
		}
	}()

	// workers
	var workersWG sync.WaitGroup
	workersWG.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go func() {
			defer workersWG.Done()
			for j := range jobs {
				// throttle by RPS before sending the request
				if err := s.limiter.Wait(s.ctx); err != nil {
					s.logger.Warn("limiter_wait_interrupted", zap.Error(err))
					return
				}
				s.sendOrder(j)
			}
		}()
	}

	// enqueue; duplicates replay an order the generator already queued
	var used []seedOrder
enqueue:
	for i := 0; i < totalOrders; i++ {
		j := job{}
		if len(used) > 0 && rand.Float64() < s.duplicateRatio {
			j.order = used[rand.Intn(len(used))]
			j.duplicate = true
		} else {
			j.order = s.newOrder()
			used = append(used, j.order)
		}
		select {
		case <-s.ctx.Done():
			break enqueue
		case jobs <- j:
			atomic.AddInt64(&s.enqueued, 1)
		}
	}

	// drain
	close(jobs)
	workersWG.Wait()
	close(stopProg)
	wg.Wait()
}

func (s *Seeder) newOrder() seedOrder {
	order := seedOrder{
		OrderID:         uuid.NewString(),
		UserID:          rand.Int63n(s.users) + 1,
		ShippingAddress: "221B Baker Street, London",
		PaymentMethod:   "razorpay",
	}
	for n := rand.Intn(s.maxItems) + 1; n > 0; n-- {
		item := seedItem{
			ProductID:   rand.Int63n(10_000) + 1,
			Quantity:    int32(rand.Intn(3) + 1),
			Price:       rand.Int63n(s.maxPrice) + 1,
			ProductName: fmt.Sprintf("product-%d", n),
		}
		order.TotalAmount += item.Price * int64(item.Quantity)
		order.Items = append(order.Items, item)
	}
	return order
}

func (s *Seeder) sendOrder(j job) {
	start := time.Now()
	atomic.AddInt64(&s.sent, 1)

	body, _ := json.Marshal(j.order)
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.apiURL+"/api/order", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Error("build_request_failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(pkg.HeaderRequestId, uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&s.fail, 1)
		s.logger.Error("api_call_failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	lat := time.Since(start)
	traceID := resp.Header.Get(pkg.HeaderTraceId)
	switch {
	case resp.StatusCode == http.StatusCreated:
		// a replay can overtake its original, so the second 201 for an id is the defect
		if _, loaded := s.accepted.LoadOrStore(j.order.OrderID, struct{}{}); loaded {
			atomic.AddInt64(&s.unexpected, 1)
			s.logger.Error("duplicate_order_accepted",
				zap.String(pkg.OrderId, j.order.OrderID),
				zap.String(pkg.TraceId, traceID))
			return
		}
		atomic.AddInt64(&s.ok, 1)
		s.logger.Debug("api_call_completed",
			zap.String(pkg.OrderId, j.order.OrderID),
			zap.String(pkg.TraceId, traceID),
			zap.Duration("latency", lat))
	case resp.StatusCode == http.StatusBadRequest && j.duplicate:
		atomic.AddInt64(&s.rejected, 1)
	default:
		atomic.AddInt64(&s.fail, 1)
		s.logger.Error("api_call_failed",
			zap.String(pkg.OrderId, j.order.OrderID),
			zap.String(pkg.TraceId, traceID),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("latency", lat))
	}
}
