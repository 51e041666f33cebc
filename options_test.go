package monitor

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMergeOptions_Precedence(t *testing.T) {
	typeDefaults := Layer{
		Interval:         Duration(2 * time.Second),
		Collection:       String("type"),
		UpdateInterval:   Duration(3 * time.Second),
		PercentageOutput: Bool(false),
		MountPoint:       String("/data"),
	}
	overrides := Layer{
		Interval:         Duration(4 * time.Second),
		Collection:       String("instance"),
		UpdateInterval:   Duration(0),
		PercentageOutput: Bool(true),
		MountPoint:       String("/srv"),
	}

	tests := []struct {
		name     string
		defaults Layer
		override Layer
		want     Options
	}{
		{
			name: "global only",
			want: Options{
				Interval:         DefaultInterval,
				Collection:       "key",
				PercentageOutput: true,
				MountPoint:       "/",
			},
		},
		{
			name:     "type defaults over global",
			defaults: typeDefaults,
			want: Options{
				Interval:         2 * time.Second,
				Collection:       "type",
				UpdateInterval:   3 * time.Second,
				PercentageOutput: false,
				MountPoint:       "/data",
			},
		},
		{
			name:     "instance over type defaults",
			defaults: typeDefaults,
			override: overrides,
			want: Options{
				Interval:         4 * time.Second,
				Collection:       "instance",
				UpdateInterval:   0,
				PercentageOutput: true,
				MountPoint:       "/srv",
			},
		},
		{
			name:     "instance over global",
			override: Layer{Interval: Duration(time.Minute), PercentageOutput: Bool(false)},
			want: Options{
				Interval:         time.Minute,
				Collection:       "key",
				PercentageOutput: false,
				MountPoint:       "/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeOptions("key", tt.defaults, tt.override); got != tt.want {
				t.Errorf("mergeOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMonitor_ConfigureMergesCalls(t *testing.T) {
	m := newMonitor("mem", zap.NewNop())
	m.SetCalculator(NewMemoryCalculator())

	m.Configure(Layer{Interval: Duration(5 * time.Second)})
	m.Configure(Layer{PercentageOutput: Bool(false)})
	m.Configure(Layer{Interval: Duration(6 * time.Second)})

	got := m.Options()
	if got.Interval != 6*time.Second {
		t.Errorf("Interval = %v, want 6s", got.Interval)
	}
	if got.PercentageOutput {
		t.Error("PercentageOutput = true, want false")
	}
	if got.Collection != "mem" {
		t.Errorf("Collection = %q, want mem", got.Collection)
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{Interval: time.Second, Collection: "cpu"}, false},
		{"zero interval", Options{Collection: "cpu"}, true},
		{"negative interval", Options{Interval: -time.Second, Collection: "cpu"}, true},
		{"no collection", Options{Interval: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
