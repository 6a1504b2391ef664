package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pkkmi/andikar-gate/app"
	"github.com/pkkmi/andikar-gate/ports"
)

func newDetectFixture(t *testing.T) (*app.DetectService, *fixture) {
	t.Helper()
	f := newFixture(t, app.DynamicConfig{RateLimitOff: true})
	return app.NewDetectService(f.svc, zerolog.Nop()), f
}

func TestDetect_GatedByTierFeature(t *testing.T) {
	svc, _ := newDetectFixture(t)

	// Free does not include detection.
	_, err := svc.Detect(context.Background(), "u1", "Free", "some text to score here")
	var notIncluded *app.ErrFeatureNotIncluded
	if !errors.As(err, &notIncluded) {
		t.Fatalf("err = %v, want ErrFeatureNotIncluded", err)
	}
	if notIncluded.Feature != app.FeatureDetect || notIncluded.Tier != "Free" {
		t.Errorf("error detail = %+v", notIncluded)
	}
}

func TestDetect_BasicTierScores(t *testing.T) {
	svc, _ := newDetectFixture(t)

	res, err := svc.Detect(context.Background(), "u1", "Basic", "It is important to note that the system works.")
	if err != nil {
		t.Fatal(err)
	}
	if res.AIScore < 0 || res.AIScore > 100 {
		t.Errorf("ai score = %v, want within [0, 100]", res.AIScore)
	}
	if res.AIScore+res.HumanScore != 100 {
		t.Errorf("scores do not sum to 100: %v + %v", res.AIScore, res.HumanScore)
	}
}

func TestDetect_EmptyText(t *testing.T) {
	svc, _ := newDetectFixture(t)

	_, err := svc.Detect(context.Background(), "u1", "Basic", " ")
	if !errors.Is(err, ports.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestDetect_UsesStoredPlan(t *testing.T) {
	svc, f := newDetectFixture(t)
	ctx := context.Background()

	if err := f.users.Create(ctx, ports.User{ID: "u1", PlanName: "Premium", PaymentStatus: "Paid"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Detect(ctx, "u1", "", "scored under the stored plan"); err != nil {
		t.Errorf("detect under stored Premium plan failed: %v", err)
	}
}

func TestDetect_ConsumesNoQuota(t *testing.T) {
	svc, f := newDetectFixture(t)
	ctx := context.Background()

	if _, err := svc.Detect(ctx, "u1", "Basic", "this should be free of charge"); err != nil {
		t.Fatal(err)
	}
	rec, _, err := f.svc.Usage(ctx, "u1", "Basic")
	if err != nil {
		t.Fatal(err)
	}
	if rec.RequestsCount != 0 || rec.TotalWords != 0 {
		t.Errorf("usage = %+v, detection must not bill words", rec)
	}
}
