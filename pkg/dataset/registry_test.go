package dataset

import "testing"

func TestRegistryCreateGetDelete(t *testing.T) {
	r := NewRegistry()

	d, err := r.Create("trajectories", DefaultQuota())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID == "" {
		t.Error("expected generated dataset ID")
	}

	if _, err := r.Create("trajectories", DefaultQuota()); err == nil {
		t.Error("expected error creating duplicate dataset")
	}

	got, err := r.Get("trajectories")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != d.ID {
		t.Errorf("Get() returned different dataset: %v vs %v", got.ID, d.ID)
	}

	if err := r.Delete("trajectories"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := r.Get("trajectories"); err == nil {
		t.Error("expected error getting deleted dataset")
	}
}

func TestCheckPointQuota(t *testing.T) {
	d := &Dataset{Quota: Quota{MaxPoints: 100}}

	if err := d.CheckPointQuota(50); err != nil {
		t.Errorf("expected quota check to pass, got %v", err)
	}

	d.RecordRun(90)
	if err := d.CheckPointQuota(50); err == nil {
		t.Error("expected quota check to fail once over limit")
	}
}

func TestUnlimitedQuotaNeverTrips(t *testing.T) {
	d := &Dataset{Quota: UnlimitedQuota()}
	if err := d.CheckPointQuota(1 << 40); err != nil {
		t.Errorf("unlimited quota should never reject, got %v", err)
	}
	if err := d.CheckDimensionQuota(100000); err != nil {
		t.Errorf("unlimited quota should never reject, got %v", err)
	}
	if err := d.CheckRunQuota(); err != nil {
		t.Errorf("unlimited quota should never reject, got %v", err)
	}
}

func TestCheckRateLimit(t *testing.T) {
	d := &Dataset{Quota: Quota{RateLimitQPS: 2}}

	if err := d.CheckRateLimit(); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	if err := d.CheckRateLimit(); err != nil {
		t.Fatalf("second request should pass: %v", err)
	}
	if err := d.CheckRateLimit(); err == nil {
		t.Error("third request within the same second should be rate limited")
	}
}
