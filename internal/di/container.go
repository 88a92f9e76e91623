// Package di assembles the runtime dependency graph. Handlers depend on the
// service contracts only; everything concrete is wired here.
package di

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/summit-offroad/api/internal/oracle"
	"github.com/summit-offroad/api/internal/platform/cache"
	"github.com/summit-offroad/api/internal/platform/config"
	pfirestore "github.com/summit-offroad/api/internal/platform/firestore"
	"github.com/summit-offroad/api/internal/platform/jobs"
	"github.com/summit-offroad/api/internal/platform/observability"
	"github.com/summit-offroad/api/internal/platform/ratelimit"
	firestoreRepo "github.com/summit-offroad/api/internal/repositories/firestore"
	"github.com/summit-offroad/api/internal/services"
)

// Container wires repositories, services, and platform infrastructure for
// runtime use. Tests assemble services directly and never touch this package.
type Container struct {
	Config  config.Config
	Logger  *zap.Logger
	Metrics *observability.FunnelMetrics
	Limiter *ratelimit.Limiter
	Offers  services.OffersService

	firestore    *pfirestore.Provider
	pubsubClient *pubsub.Client
}

// NewContainer constructs the runtime dependencies. The pub/sub publisher and
// the ranking oracle are optional; the container degrades to synchronous noop
// tracking and rule-based recommendations when they are absent.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics, err := observability.NewFunnelMetrics()
	if err != nil {
		return nil, fmt.Errorf("build metrics: %w", err)
	}

	provider := pfirestore.NewProvider(cfg.Firestore)

	products, err := firestoreRepo.NewProductRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	orders, err := firestoreRepo.NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}

	container := &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		firestore: provider,
	}

	var publisher services.ViewTrackingPublisher
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		container.pubsubClient = client

		publisher, err = jobs.NewPubSubViewTrackingPublisher(client.Topic(cfg.PubSub.ViewTrackingTopic))
		if err != nil {
			return nil, fmt.Errorf("build view tracking publisher: %w", err)
		}
	}

	var ranking oracle.RankingOracle
	if cfg.Features.EnableOracle && cfg.Oracle.Enabled() {
		ranking, err = oracle.NewOpenAIOracle(oracle.OpenAIConfig{
			APIKey:  cfg.Oracle.APIKey,
			Model:   cfg.Oracle.Model,
			BaseURL: cfg.Oracle.BaseURL,
			Timeout: cfg.Oracle.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build ranking oracle: %w", err)
		}
	}

	events := observability.ServiceLogger(logger)

	classifier, err := services.NewSegmentService(services.SegmentServiceDeps{
		Products: products,
		Orders:   orders,
		Oracle:   ranking,
		Metrics:  metrics,
		Logger:   events,
	})
	if err != nil {
		return nil, fmt.Errorf("build segment service: %w", err)
	}

	recommender, err := services.NewRecommendationService(services.RecommendationServiceDeps{
		Products:    products,
		Oracle:      ranking,
		Cache:       cache.New(cache.RecommendationTTL, cache.WithCapacity(cfg.Cache.Capacity)),
		OracleCache: cache.New(cache.OracleResponseTTL, cache.WithCapacity(cfg.Cache.Capacity)),
		Metrics:     metrics,
		Logger:      events,
	})
	if err != nil {
		return nil, fmt.Errorf("build recommendation service: %w", err)
	}

	var governor services.RevenueGovernor = services.NewRevenueGovernor(services.RevenueGovernorDeps{
		MaxMonthlyRevenue: cfg.Revenue.MaxMonthlyCents,
		Logger:            events,
	})
	if !cfg.Features.EnablePromotions {
		governor = promotionsDisabledGovernor{RevenueGovernor: governor}
	}

	offers, err := services.NewFunnelOffersService(services.OffersServiceDeps{
		Classifier:  classifier,
		Selector:    services.NewFunnelService(nil),
		Recommender: recommender,
		Pricing:     services.NewPricingEngine(services.PricingEngineDeps{Logger: events}),
		Governor:    governor,
		Publisher:   publisher,
		Metrics:     metrics,
		Logger:      events,
	})
	if err != nil {
		return nil, fmt.Errorf("build offers service: %w", err)
	}
	container.Offers = offers

	container.Limiter = ratelimit.New(cfg.RateLimits.Requests, cfg.RateLimits.Window)
	container.Limiter.StartSweeper(cfg.RateLimits.SweepInterval)

	return container, nil
}

// FirestoreReady probes the backing Firestore client, for readiness checks.
func (c *Container) FirestoreReady(ctx context.Context) error {
	if c == nil || c.firestore == nil {
		return errors.New("firestore provider is not configured")
	}
	_, err := c.firestore.Client(ctx)
	return err
}

// Close releases the limiter sweeper and the backing clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.Limiter != nil {
		c.Limiter.Stop()
	}
	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.firestore != nil {
		if err := c.firestore.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// promotionsDisabledGovernor keeps revenue accounting live while the
// promotions feature flag is off. Offers render at list price only.
type promotionsDisabledGovernor struct {
	services.RevenueGovernor
}

func (g promotionsDisabledGovernor) Status() services.RevenueStatus {
	status := g.RevenueGovernor.Status()
	status.ShouldOfferPromotions = false
	return status
}
