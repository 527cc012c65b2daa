package trigger

import (
	"testing"

	logx "soatbot/pkg/logx"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	s := New(Config{}, Jobs{}, logx.Nop())

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "all defaults", cfg: Config{}},
		{name: "explicit specs", cfg: Config{DeliverySpec: "0 9-17 * * 1-5", ReconcileSpec: "30 6 * * *"}},
		{name: "descriptor", cfg: Config{ReconcileSpec: "@daily"}},
		{name: "timezone", cfg: Config{Timezone: "America/Bogota"}},
		{name: "bad delivery spec", cfg: Config{DeliverySpec: "not a cron"}, wantErr: true},
		{name: "bad reconcile spec", cfg: Config{ReconcileSpec: "61 * * * *"}, wantErr: true},
		{name: "bad timezone", cfg: Config{Timezone: "Mars/Olympus"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.cfg)
			if tt.wantErr && err == nil {
				t.Fatalf("Validate(%+v): expected error", tt.cfg)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate(%+v): %v", tt.cfg, err)
			}
		})
	}
}

func TestSpecOrDefault(t *testing.T) {
	t.Parallel()
	if got := specOrDefault("", DefaultDeliverySpec); got != DefaultDeliverySpec {
		t.Fatalf("empty spec = %q", got)
	}
	if got := specOrDefault("  ", DefaultReconcileSpec); got != DefaultReconcileSpec {
		t.Fatalf("blank spec = %q", got)
	}
	if got := specOrDefault("0 7 * * *", DefaultDeliverySpec); got != "0 7 * * *" {
		t.Fatalf("explicit spec = %q", got)
	}
}
