package main

import (
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/hilthontt/convoy/internal/domain"
	"github.com/hilthontt/convoy/internal/infrastructure/configs"
)

func TestParseFix(t *testing.T) {
	fix, err := parseFix("45.1, 6.1, 80, 270, 12")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if fix.Lat != 45.1 || fix.Lon != 6.1 || *fix.SpeedKmh != 80 || *fix.Heading != 270 || *fix.Accuracy != 12 {
		t.Fatalf("unexpected fix %+v", fix)
	}

	fix, err = parseFix("45.1,6.1,,90")
	if err != nil || fix.SpeedKmh != nil || fix.Heading == nil || *fix.Heading != 90 {
		t.Fatalf("expected heading only, got %+v, %v", fix, err)
	}

	if _, err := parseFix("0,0"); !errors.Is(err, domain.ErrSentinelFix) {
		t.Fatalf("expected sentinel rejection, got %v", err)
	}
	if _, err := parseFix("45.1,6.1,10,10,9000"); !errors.Is(err, domain.ErrInaccurateFix) {
		t.Fatalf("expected accuracy rejection, got %v", err)
	}
	if _, err := parseFix("45.1"); err == nil {
		t.Fatalf("expected error for missing longitude")
	}
}

func TestParseFlagsTakesDefaultsFromConfig(t *testing.T) {
	cfg := &configs.Config{}
	cfg.Alerts.ThresholdKm = 3.5
	cfg.Routing.CacheTTL = 20 * time.Second
	cfg.Routing.MinInterval = 2 * time.Second
	cfg.Logger.Level = "debug"

	o := parseFlags(flag.NewFlagSet("follow", flag.ContinueOnError), cfg, []string{"-room", "ski"})
	if o.thresholdKm != 3.5 || o.cacheTTL != 20*time.Second || o.minInterval != 2*time.Second || o.logLevel != "debug" {
		t.Fatalf("expected config defaults, got %+v", o)
	}
	if o.room != "ski" {
		t.Fatalf("expected room from flags, got %q", o.room)
	}

	o = parseFlags(flag.NewFlagSet("follow", flag.ContinueOnError), cfg, []string{"-alert-km", "12"})
	if o.thresholdKm != 12 {
		t.Fatalf("expected flag to override config, got %v", o.thresholdKm)
	}
}
