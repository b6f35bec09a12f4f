package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/free99/config"
	"github.com/d60-Lab/free99/internal/cache"
	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/internal/repository"
	"github.com/d60-Lab/free99/internal/service"
	pkgcache "github.com/d60-Lab/free99/pkg/cache"
	"github.com/d60-Lab/free99/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// claimbench: LISTINGS 个物品，每个被 RIVALS 个用户同时认领，CONC 个 worker 并发执行。
// 结束后校验每个物品恰好一个赢家，并输出认领与信息流延迟分位数。
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	listingsN := envInt("LISTINGS", 200)
	rivals := envInt("RIVALS", 10)
	conc := envInt("CONC", 16)
	reads := envInt("READS", 50)

	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	rdb, err := pkgcache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		fmt.Println("redis unavailable, profile cache disabled:", err)
	}
	profiles := cache.NewProfileCache(userRepo, rdb, cfg.Redis.ProfileTTL)
	opts := service.OptionsFromConfig(cfg.Market)
	opts.RequireVerified = false
	listings := service.NewListingService(listingRepo, userRepo, profiles, opts)

	// seed: 一个发布者 + rivals 个认领者
	run := uuid.New().String()[:8]
	poster := &model.User{ID: uuid.New().String(), FullName: "poster", Email: "poster-" + run + "@bench.edu", ResidenceHall: "A", PickupPreference: "lobby"}
	must(0, userRepo.Create(ctx, poster))
	claimants := make([]string, rivals)
	for i := range claimants {
		u := &model.User{ID: uuid.New().String(), FullName: fmt.Sprintf("rival-%d", i), Email: fmt.Sprintf("rival-%d-%s@bench.edu", i, run), ResidenceHall: "B", PickupPreference: "door"}
		must(0, userRepo.Create(ctx, u))
		claimants[i] = u.ID
	}
	ids := make([]string, listingsN)
	for i := range ids {
		item := must(listings.CreateListing(ctx, poster.ID, service.CreateListingInput{
			Title:         fmt.Sprintf("item %d", i),
			Description:   "bench",
			ImageURL:      "https://img.example/bench.jpg",
			Tags:          []string{"bench"},
			ResidenceHall: "A",
			Condition:     "good",
			PickupOnly:    true,
		}))
		ids[i] = item.ID
	}
	fmt.Printf("seeded %d listings, %d rivals each\n", listingsN, rivals)

	type job struct{ listing, claimant string }
	jobs := make(chan job, listingsN*rivals)
	for _, l := range ids {
		for _, c := range claimants {
			jobs <- job{l, c}
		}
	}
	close(jobs)

	var (
		mu       sync.Mutex
		lat      = make([]time.Duration, 0, listingsN*rivals)
		wins     = make(map[string]int, listingsN)
		rejected int
		failed   int
		wg       sync.WaitGroup
	)
	t0 := time.Now()
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				st := time.Now()
				err := listings.Claim(ctx, j.listing, j.claimant)
				d := time.Since(st)
				mu.Lock()
				lat = append(lat, d)
				switch {
				case err == nil:
					wins[j.listing]++
				case errors.Is(err, service.ErrAlreadyClaimed):
					rejected++
				default:
					failed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	claimDur := time.Since(t0)

	violations := 0
	for _, l := range ids {
		if wins[l] != 1 {
			violations++
		}
	}

	profiles.ResetCounters()
	feedLat := make([]time.Duration, 0, reads)
	for i := 0; i < reads; i++ {
		st := time.Now()
		_ = must(listings.ListMyPostings(ctx, poster.ID))
		feedLat = append(feedLat, time.Since(st))
	}
	counters := profiles.Counters()

	fmt.Printf("LISTINGS=%d, RIVALS=%d, CONC=%d\n", listingsN, rivals, conc)
	fmt.Printf("claims total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		claimDur, claimDur/time.Duration(len(lat)), pct(lat, 0.50), pct(lat, 0.95), pct(lat, 0.99))
	fmt.Printf("winners=%d rejected=%d failed=%d violations=%d\n", len(wins), rejected, failed, violations)
	fmt.Printf("postings read x%d: p50=%v, p95=%v, cache hits=%d misses=%d bulk loads=%d\n",
		reads, pct(feedLat, 0.50), pct(feedLat, 0.95), counters.Hits, counters.Misses, counters.BulkLoads)
	if violations > 0 || failed > 0 {
		os.Exit(1)
	}
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}
