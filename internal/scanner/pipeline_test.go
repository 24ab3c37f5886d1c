package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"labelcheck/internal/catalog"
	"labelcheck/internal/inference"
	"labelcheck/internal/ledger"
	"labelcheck/internal/models"
)

type askReply struct {
	payload string
	usage   inference.Usage
	err     error
}

// fakeAsker feeds canned structured responses to the pipeline and records
// every request it saw.
type fakeAsker struct {
	t        *testing.T
	replies  []askReply
	requests []inference.Request
}

func (f *fakeAsker) Ask(_ context.Context, req inference.Request, out any) (inference.Usage, error) {
	f.requests = append(f.requests, req)
	require.NotEmpty(f.t, f.replies, "pipeline made more calls than scripted")
	r := f.replies[0]
	f.replies = f.replies[1:]
	if r.err != nil {
		return r.usage, r.err
	}
	require.NoError(f.t, json.Unmarshal([]byte(r.payload), out))
	return r.usage, nil
}

func newTestPipeline(t *testing.T, asker *fakeAsker) (*Pipeline, *gorm.DB, *models.User) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.ScanRecord{}))

	user := &models.User{JID: "628111@s.whatsapp.net", ProfileReady: true}
	require.NoError(t, db.Create(user).Error)

	pipeline := NewPipeline(asker,
		catalog.NewStore(db, 0.84),
		ledger.NewLedger(db),
		Options{ExtractModel: "cheap-model", AnalysisModel: "strong-model", MaxOutputTokens: 4096},
	)
	return pipeline, db, user
}

func tokens(prompt, output int64) inference.Usage {
	return inference.Usage{
		PromptTokens: prompt,
		OutputTokens: output,
		TotalTokens:  prompt + output,
		Cost:         decimal.NewFromInt(prompt + output).Mul(decimal.RequireFromString("0.00001")),
	}
}

const extractionCola = `{"is_product":true,"product_name":"Diet Cola Soft Drink 330ml","brand":"Acme"}`
const deepCola = `{"is_product":true,"product_name":"Diet Cola 330ml","brand":"Acme","health_score":35,
	"ingredients":{"good":[{"name":"water","reason":"hydration"}],
	"okay":[{"name":"caramel color","reason":"generally safe"}],
	"bad":[{"name":"aspartame","reason":"artificial sweetener"}]}}`
const compatMedium = `{"compatibility_level":"MEDIUM","reason":"sweeteners conflict with your sensitivities"}`

func TestScanMissThenHitSharesOneRecord(t *testing.T) {
	asker := &fakeAsker{t: t, replies: []askReply{
		{payload: extractionCola, usage: tokens(800, 50)},
		{payload: deepCola, usage: inference.Usage{PromptTokens: 2000, OutputTokens: 600, TotalTokens: 2600, SearchRequests: 2}},
		{payload: compatMedium, usage: tokens(300, 40)},
	}}
	pipeline, db, user := newTestPipeline(t, asker)

	first, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, first.Outcome)
	assert.False(t, first.CacheHit)
	require.NotNil(t, first.Product)
	assert.Equal(t, "Diet Cola 330ml", first.Product.Name)
	require.NotNil(t, first.Compatibility)
	assert.Equal(t, models.CompatibilityMedium, first.Compatibility.Level)

	require.Len(t, asker.requests, 3)
	assert.Equal(t, "cheap-model", asker.requests[0].Model)
	assert.False(t, asker.requests[0].EnableSearch)
	assert.Equal(t, "strong-model", asker.requests[1].Model)
	assert.True(t, asker.requests[1].EnableSearch)
	assert.Equal(t, "cheap-model", asker.requests[2].Model)
	assert.Equal(t, int64(2), first.Usage.SearchRequests)

	// Second scan of the same product phrased differently: extraction and
	// compatibility only, no deep analysis.
	asker.replies = []askReply{
		{payload: `{"is_product":true,"product_name":"Diet Cola 330ml","brand":"Acme"}`, usage: tokens(800, 45)},
		{payload: compatMedium, usage: tokens(300, 40)},
	}
	second, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, second.Outcome)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Product.ID, second.Product.ID)
	require.Len(t, asker.requests, 5, "cache hit skips the deep call")

	var productCount int64
	require.NoError(t, db.Model(&models.Product{}).Count(&productCount).Error)
	assert.Equal(t, int64(1), productCount)

	var records []models.ScanRecord
	require.NoError(t, db.Order("id").Find(&records).Error)
	require.Len(t, records, 2)
	assert.False(t, records[0].CacheHit)
	assert.True(t, records[1].CacheHit)
	assert.Equal(t, int64(2), records[0].SearchRequests)
	assert.Equal(t, int64(0), records[1].SearchRequests)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, int64(2), reloaded.ScanCount)
}

func TestScanRejectedTouchesNothing(t *testing.T) {
	asker := &fakeAsker{t: t, replies: []askReply{
		{payload: `{"is_product":false,"rejection_reason":"photo shows a cat"}`, usage: tokens(700, 20)},
	}}
	pipeline, db, user := newTestPipeline(t, asker)

	result, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, "photo shows a cat", result.RejectionReason)
	assert.Nil(t, result.Product)

	var productCount, recordCount int64
	require.NoError(t, db.Model(&models.Product{}).Count(&productCount).Error)
	require.NoError(t, db.Model(&models.ScanRecord{}).Count(&recordCount).Error)
	assert.Equal(t, int64(0), productCount)
	assert.Equal(t, int64(0), recordCount)
}

func TestScanDeepRejectionOverridesExtraction(t *testing.T) {
	asker := &fakeAsker{t: t, replies: []askReply{
		{payload: extractionCola, usage: tokens(800, 50)},
		{payload: `{"is_product":false,"rejection_reason":"label unreadable"}`, usage: tokens(2000, 30)},
	}}
	pipeline, db, user := newTestPipeline(t, asker)

	result, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, "label unreadable", result.RejectionReason)

	var recordCount int64
	require.NoError(t, db.Model(&models.ScanRecord{}).Count(&recordCount).Error)
	assert.Equal(t, int64(0), recordCount)
}

func TestScanCompatibilityFailureDegrades(t *testing.T) {
	failedCompat := inference.Usage{PromptTokens: 300, OutputTokens: 10, TotalTokens: 310,
		Cost: decimal.RequireFromString("0.0031")}
	asker := &fakeAsker{t: t, replies: []askReply{
		{payload: extractionCola, usage: tokens(800, 50)},
		{payload: deepCola, usage: tokens(2000, 600)},
		{err: &inference.TruncatedError{Text: "{"}, usage: failedCompat},
	}}
	pipeline, db, user := newTestPipeline(t, asker)

	result, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.NoError(t, err, "compatibility failure is not a scan failure")
	assert.Equal(t, OutcomeResolved, result.Outcome)
	require.NotNil(t, result.Product)
	assert.Nil(t, result.Compatibility)

	var record models.ScanRecord
	require.NoError(t, db.First(&record).Error)
	assert.Nil(t, record.CompatibilityLevel)
	assert.Equal(t, int64(800+50+2000+600+310), record.TotalTokens,
		"failed attempt tokens are still accounted")
}

func TestScanInvalidCompatibilityLevelOmitted(t *testing.T) {
	asker := &fakeAsker{t: t, replies: []askReply{
		{payload: extractionCola, usage: tokens(800, 50)},
		{payload: deepCola, usage: tokens(2000, 600)},
		{payload: `{"compatibility_level":"MAYBE","reason":"?"}`, usage: tokens(300, 5)},
	}}
	pipeline, _, user := newTestPipeline(t, asker)

	result, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, result.Outcome)
	assert.Nil(t, result.Compatibility)
}

func TestScanExtractionFailureWritesNothing(t *testing.T) {
	asker := &fakeAsker{t: t, replies: []askReply{
		{err: errors.New("upstream down"), usage: tokens(100, 0)},
	}}
	pipeline, db, user := newTestPipeline(t, asker)

	result, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, int64(100), result.Usage.PromptTokens, "usage is reported even on failure")

	var recordCount int64
	require.NoError(t, db.Model(&models.ScanRecord{}).Count(&recordCount).Error)
	assert.Equal(t, int64(0), recordCount)
}

func TestScanClampsHealthScore(t *testing.T) {
	asker := &fakeAsker{t: t, replies: []askReply{
		{payload: extractionCola, usage: tokens(800, 50)},
		{payload: `{"is_product":true,"product_name":"Diet Cola","brand":"Acme","health_score":140,
			"ingredients":{"good":[],"okay":[],"bad":[]}}`, usage: tokens(2000, 600)},
		{payload: compatMedium, usage: tokens(300, 40)},
	}}
	pipeline, _, user := newTestPipeline(t, asker)

	result, err := pipeline.Scan(context.Background(), user.ID, []byte("img"), "image/jpeg", models.HealthProfile{})
	require.NoError(t, err)
	require.NotNil(t, result.Product.HealthScore)
	assert.Equal(t, 100, *result.Product.HealthScore)
}

func TestExtractProfile(t *testing.T) {
	asker := &fakeAsker{t: t, replies: []askReply{
		{payload: `{"diet":["vegetarian"],"food_allergies":["peanuts"],"ingredient_sensitivities":[],
			"skin_sensitivities":[],"health_conditions":["diabetes"]}`, usage: tokens(400, 60)},
	}}
	pipeline, _, _ := newTestPipeline(t, asker)

	profile, usage, err := pipeline.ExtractProfile(context.Background(),
		[]string{"vegetarian", "peanuts", "none", "none", "diabetes"})
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"vegetarian"}, profile.Diet)
	assert.Equal(t, models.StringList{"peanuts"}, profile.FoodAllergies)
	assert.False(t, profile.Empty())
	assert.Equal(t, int64(460), usage.TotalTokens)

	require.Len(t, asker.requests, 1)
	assert.Equal(t, "cheap-model", asker.requests[0].Model)
	assert.Equal(t, float64(0), asker.requests[0].Temperature)
}
