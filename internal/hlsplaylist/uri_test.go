package hlsplaylist

import "testing"

func TestStableURI(t *testing.T) {
	cases := map[string]string{
		"segment123.ts":        "/segment123.ts",
		"./segment123.ts":      "/segment123.ts",
		"../segment123.ts":     "/segment123.ts",
		"../../seg.m4s":        "/seg.ts",
		"/abs/already/seg.ts":  "/abs/already/seg.ts",
		"sub/dir/seg001.mp4":   "/sub/dir/seg001.ts",
	}
	for in, want := range cases {
		got := StableURI(in)
		if got != want {
			t.Errorf("StableURI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStableURIIdempotent(t *testing.T) {
	in := "./weird/../seg.m4s"
	first := StableURI(in)
	second := StableURI(first)
	if first != second {
		t.Errorf("StableURI not idempotent: %q vs %q", first, second)
	}
}

func TestSidecarURIs(t *testing.T) {
	stable := "/seg001.ts"
	if got := SidecarURI(stable); got != "/seg001.vtt" {
		t.Errorf("SidecarURI = %q", got)
	}
	if got := SidecarURITagged(stable, "orig"); got != "/seg001.orig.vtt" {
		t.Errorf("SidecarURITagged(orig) = %q", got)
	}
	if got := SidecarURITagged(stable, "trans"); got != "/seg001.trans.vtt" {
		t.Errorf("SidecarURITagged(trans) = %q", got)
	}
}

func TestPublishedURI(t *testing.T) {
	if got := PublishedURI("/seg001.ts"); got != "seg001.ts" {
		t.Errorf("PublishedURI = %q", got)
	}
}
