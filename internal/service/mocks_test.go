package service

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/trustmecro/trust-service/internal/analysis"
	"github.com/trustmecro/trust-service/internal/domain"
	"github.com/trustmecro/trust-service/internal/repository"
)

// --- Mock ProductRepository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter, page, perPage int) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter, page, perPage)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) ListFlagged(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepository) UpdateRatings(ctx context.Context, id string, ratings domain.Ratings) error {
	args := m.Called(ctx, id, ratings)
	return args.Error(0)
}

func (m *mockProductRepository) Approve(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock ReviewRepository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ExistsByReviewer(ctx context.Context, productID, reviewerName string) (bool, error) {
	args := m.Called(ctx, productID, reviewerName)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepository) ListByProduct(ctx context.Context, productID string) ([]domain.Review, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListFlagged(ctx context.Context) ([]domain.Review, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) Approve(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockReviewRepository) DeleteByProduct(ctx context.Context, productID string) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock UserRepository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) DecreaseTrust(ctx context.Context, id string, penalty, flaggedDelta int) (*domain.User, error) {
	args := m.Called(ctx, id, penalty, flaggedDelta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// --- Mock OperationRepository ---

type mockOperationRepository struct {
	mock.Mock
}

func (m *mockOperationRepository) Record(ctx context.Context, key, operation, subjectID string) (bool, error) {
	args := m.Called(ctx, key, operation, subjectID)
	return args.Bool(0), args.Error(1)
}

// --- Mock analyzers ---

type mockProductAnalyzer struct {
	mock.Mock
}

func (m *mockProductAnalyzer) Analyze(ctx context.Context, product *domain.Product, seller *domain.User) domain.Analysis {
	args := m.Called(ctx, product, seller)
	if fn, ok := args.Get(0).(func(context.Context, *domain.Product, *domain.User) domain.Analysis); ok {
		return fn(ctx, product, seller)
	}
	return args.Get(0).(domain.Analysis)
}

type mockReviewAnalyzer struct {
	mock.Mock
}

func (m *mockReviewAnalyzer) Analyze(ctx context.Context, in analysis.ReviewInput) domain.ReviewVerdict {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.ReviewVerdict)
}

// --- Recording EventPublisher ---

type recordingEvents struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (r *recordingEvents) record(topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recordingEvents) PublishProductAnalyzed(_ context.Context, _ *domain.Product) error {
	return r.record("product.analyzed")
}

func (r *recordingEvents) PublishProductDismissed(_ context.Context, _ *domain.Product, _ int64) error {
	return r.record("product.dismissed")
}

func (r *recordingEvents) PublishProductApproved(_ context.Context, _ *domain.Product) error {
	return r.record("product.approved")
}

func (r *recordingEvents) PublishReviewAnalyzed(_ context.Context, _ *domain.Review) error {
	return r.record("review.analyzed")
}

func (r *recordingEvents) PublishReviewDismissed(_ context.Context, _ *domain.Review) error {
	return r.record("review.dismissed")
}

func (r *recordingEvents) PublishReviewApproved(_ context.Context, _ *domain.Review) error {
	return r.record("review.approved")
}

func (r *recordingEvents) PublishSellerTrustAdjusted(_ context.Context, _ *domain.User, _ int, _ string) error {
	return r.record("seller.trust_adjusted")
}

func (r *recordingEvents) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

// --- Fake TxRunner ---

// fakeTx runs fn against the same mocks and records whether the transaction
// would have committed.
type fakeTx struct {
	repos     repository.Repositories
	committed int
	rolled    int
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(repository.Repositories) error) error {
	if err := fn(f.repos); err != nil {
		f.rolled++
		return err
	}
	f.committed++
	return nil
}

// --- Test Helpers ---

type fixture struct {
	products *mockProductRepository
	reviews  *mockReviewRepository
	users    *mockUserRepository
	ops      *mockOperationRepository
	tx       *fakeTx
	events   *recordingEvents
}

func newFixture() *fixture {
	f := &fixture{
		products: new(mockProductRepository),
		reviews:  new(mockReviewRepository),
		users:    new(mockUserRepository),
		ops:      new(mockOperationRepository),
		events:   &recordingEvents{},
	}
	f.tx = &fakeTx{repos: f.repos()}
	return f
}

func (f *fixture) repos() repository.Repositories {
	return repository.Repositories{
		Products:   f.products,
		Reviews:    f.reviews,
		Users:      f.users,
		Operations: f.ops,
	}
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.products.AssertExpectations(t)
	f.reviews.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.ops.AssertExpectations(t)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}
