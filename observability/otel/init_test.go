package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer x ,broken,=empty, tenant=stead ")
	if len(got) != 2 {
		t.Fatalf("unexpected headers: %v", got)
	}
	if got["authorization"] != "Bearer x" || got["tenant"] != "stead" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "steadd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestMergeHeadersPrefersOverride(t *testing.T) {
	base := map[string]string{"tenant": "a", "region": "eu"}
	got := MergeHeaders(base, ParseHeaders("tenant=b"))
	if got["tenant"] != "b" || got["region"] != "eu" {
		t.Fatalf("unexpected merge: %v", got)
	}
	if base["tenant"] != "a" {
		t.Fatalf("base map mutated")
	}
}

func TestSamplerRatio(t *testing.T) {
	if got := sampler(0).Description(); got != sampler(1).Description() {
		t.Fatalf("out-of-range ratios should sample everything: %s vs %s", got, sampler(1).Description())
	}
	if got := sampler(0.25).Description(); got == sampler(1).Description() {
		t.Fatalf("ratio sampler not applied: %s", got)
	}
}
