package collector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"watch-market-portal/internal/config"
	"watch-market-portal/internal/models"
	"watch-market-portal/internal/ratelimit"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// Store is the persistence surface the collector needs. SaveListing is
// append-only (an existing URL is reused), SaveSnapshot overwrites the
// observation for the same (listing, date).
type Store interface {
	ModelsByBrand(brand string) ([]models.WatchModel, error)
	SaveListing(l *models.Listing) error
	SaveSnapshot(s *models.ListingSnapshot) error
}

// Collector fetches marketplace search pages per watch model and records
// one listing snapshot per listing per day.
type Collector struct {
	store   Store
	cfg     config.CollectorConfig
	limiter *ratelimit.Limiter
}

// RunResult summarizes one collection run.
type RunResult struct {
	ModelsVisited  int
	ListingsFound  int
	SnapshotsSaved int
	Errors         int
}

func New(store Store, cfg config.CollectorConfig, limiter *ratelimit.Limiter) *Collector {
	return &Collector{
		store:   store,
		cfg:     cfg,
		limiter: limiter,
	}
}

// ObservedListing is one listing card parsed from a marketplace search page.
type ObservedListing struct {
	URL             string
	Title           string
	Price           *float64
	Available       bool
	ShippingDaysMin *int
	ShippingDaysMax *int
}

// Run collects observations for every model of the brand and persists them
// under the given capture date. Per-model failures are logged and counted,
// they do not abort the run.
func (c *Collector) Run(brand string, day time.Time) (*RunResult, error) {
	watchModels, err := c.store.ModelsByBrand(brand)
	if err != nil {
		return nil, fmt.Errorf("failed to load models for %q: %w", brand, err)
	}

	result := &RunResult{}
	log.Printf("[Collector] Starting run: brand=%s date=%s models=%d",
		brand, day.Format(models.DateLayout), len(watchModels))

	for _, m := range watchModels {
		if !c.limiter.Wait(2 * time.Minute) {
			log.Printf("[Collector] Rate limit wait exceeded, stopping run early")
			break
		}

		observed, err := c.CollectModel(m)
		result.ModelsVisited++
		if err != nil {
			log.Printf("[Collector] ERROR collecting model %d (%s): %v", m.ID, m.RefCode, err)
			result.Errors++
			continue
		}

		saved, errs := c.persist(m.ID, observed, day)
		result.ListingsFound += len(observed)
		result.SnapshotsSaved += saved
		result.Errors += errs

		time.Sleep(c.cfg.GetRequestDelay())
	}

	log.Printf("[Collector] Run complete: visited=%d listings=%d snapshots=%d errors=%d",
		result.ModelsVisited, result.ListingsFound, result.SnapshotsSaved, result.Errors)
	return result, nil
}

// CollectModel fetches and parses the search page for one model, with retries.
func (c *Collector) CollectModel(m models.WatchModel) ([]ObservedListing, error) {
	searchURL := c.searchURL(m)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			log.Printf("[Collector] Retry %d/%d for %s after %v", attempt, c.cfg.MaxRetries, searchURL, backoff)
			time.Sleep(backoff)
		}

		html, err := c.fetchRenderedHTML(searchURL)
		if err != nil {
			lastErr = err
			continue
		}

		observed, err := ParseSearchPage(html, c.cfg.MaxListingsPerModel)
		if err != nil {
			lastErr = err
			continue
		}
		return observed, nil
	}
	return nil, fmt.Errorf("all attempts failed for %s: %w", searchURL, lastErr)
}

// searchURL builds the marketplace search URL for a model. The reference
// code is the most selective query; fall back to the model name.
func (c *Collector) searchURL(m models.WatchModel) string {
	query := m.RefCode
	if query == "" {
		query = m.ModelName
	}
	return fmt.Sprintf("%s?q=%s", c.cfg.SearchBaseURL, url.QueryEscape(strings.TrimSpace(query)))
}

// fetchRenderedHTML uses Chrome headless to fetch the search page HTML.
// Marketplace search pages render listing cards with JavaScript, so a plain
// GET returns an empty shell.
func (c *Collector) fetchRenderedHTML(pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(c.cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, c.cfg.GetTimeout())
	defer cancel()

	var htmlContent string
	err := chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}

	log.Printf("[Collector] Fetched %s (%d bytes)", pageURL, len(htmlContent))
	return htmlContent, nil
}

// persist writes one listing row (append-only) and one snapshot row per
// observed listing. Returns saved snapshot count and error count.
func (c *Collector) persist(modelID int64, observed []ObservedListing, day time.Time) (int, int) {
	saved, errs := 0, 0
	for _, obs := range observed {
		listing := &models.Listing{
			ModelID: modelID,
			Source:  "chrono_market",
			URL:     obs.URL,
			Title:   obs.Title,
		}
		if err := c.store.SaveListing(listing); err != nil {
			log.Printf("[Collector] ERROR saving listing %s: %v", obs.URL, err)
			errs++
			continue
		}

		snap := &models.ListingSnapshot{
			ListingID:        listing.ID,
			CapturedDate:     day,
			PriceValue:       obs.Price,
			AvailabilityFlag: obs.Available,
			ShippingDaysMin:  obs.ShippingDaysMin,
			ShippingDaysMax:  obs.ShippingDaysMax,
		}
		if err := c.store.SaveSnapshot(snap); err != nil {
			log.Printf("[Collector] ERROR saving snapshot for listing %d: %v", listing.ID, err)
			errs++
			continue
		}
		saved++
	}
	return saved, errs
}

var (
	priceRe    = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	shippingRe = regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s*(?:business\s+)?days`)
)

// ParseSearchPage extracts listing cards from a rendered search page.
// Cards missing a link are skipped; cards missing a price produce an
// observation with a nil price (the stats pipeline ignores those rows).
func ParseSearchPage(html string, maxListings int) ([]ObservedListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var observed []ObservedListing
	doc.Find("article.listing-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if maxListings > 0 && len(observed) >= maxListings {
			return false
		}

		href, ok := card.Find("a.listing-link").Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}

		obs := ObservedListing{
			URL:       strings.TrimSpace(href),
			Title:     strings.TrimSpace(card.Find(".listing-title").First().Text()),
			Available: true,
		}

		priceText := strings.TrimSpace(card.Find(".listing-price").First().Text())
		obs.Price = parsePrice(priceText)

		status := strings.ToLower(strings.TrimSpace(card.Find(".listing-status").First().Text()))
		if status == "sold" || status == "sold out" || card.HasClass("is-sold") {
			obs.Available = false
		}

		shipText := strings.ToLower(card.Find(".listing-shipping").First().Text())
		obs.ShippingDaysMin, obs.ShippingDaysMax = parseShippingRange(shipText)

		observed = append(observed, obs)
		return true
	})

	return observed, nil
}

// parsePrice pulls the first numeric amount out of a price label like
// "$13,500" or "USD 13500.00". Returns nil for "Price on request" etc.
func parsePrice(text string) *float64 {
	match := priceRe.FindString(text)
	if match == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

// parseShippingRange parses "ships in 3-5 days" style labels. A single
// number ("ships in 7 days") is treated as a degenerate range.
func parseShippingRange(text string) (*int, *int) {
	if m := shippingRe.FindStringSubmatch(text); m != nil {
		lo, err1 := strconv.Atoi(m[1])
		hi, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			return &lo, &hi
		}
	}

	singleRe := regexp.MustCompile(`(\d+)\s*(?:business\s+)?days`)
	if m := singleRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n, &n
		}
	}
	return nil, nil
}
