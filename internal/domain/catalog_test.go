package domain

import "testing"

func TestSegmentCatalogIntegrity(t *testing.T) {
	segments := Segments()
	if len(segments) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(segments))
	}
	seen := make(map[string]bool)
	for _, s := range segments {
		if s.ID == "" || s.Name == "" {
			t.Fatalf("segment missing id or name: %+v", s)
		}
		if seen[s.ID] {
			t.Fatalf("duplicate segment id %q", s.ID)
		}
		seen[s.ID] = true
		if s.ConversionRate <= 0 || s.ConversionRate >= 1 {
			t.Fatalf("segment %s conversion rate out of range: %v", s.ID, s.ConversionRate)
		}
	}
}

func TestFunnelStepsReferenceKnownSegments(t *testing.T) {
	for _, step := range FunnelSteps() {
		if len(step.TargetSegmentIDs) == 0 {
			t.Fatalf("step %s targets no segments", step.ID)
		}
		for _, id := range step.TargetSegmentIDs {
			if _, ok := SegmentByID(id); !ok {
				t.Fatalf("step %s targets unknown segment %q", step.ID, id)
			}
		}
		if len(step.Associations.OfferProductIDs) == 0 {
			t.Fatalf("step %s offers no products", step.ID)
		}
	}
}

func TestPricingRulesUniquePerSegmentCategory(t *testing.T) {
	type key struct {
		segment  string
		category int
	}
	seen := make(map[key]bool)
	for _, rule := range PricingRules() {
		if _, ok := SegmentByID(rule.SegmentID); !ok {
			t.Fatalf("rule references unknown segment %q", rule.SegmentID)
		}
		k := key{rule.SegmentID, rule.CategoryID}
		if seen[k] {
			t.Fatalf("duplicate pricing rule for %+v", k)
		}
		seen[k] = true
		if rule.MinimumMarginPercentage > rule.BaseMarkupPercentage {
			t.Fatalf("rule %+v floor exceeds base markup", k)
		}
	}
}

func TestSegmentByNameIsCaseInsensitive(t *testing.T) {
	if _, ok := SegmentByName("mud & trail enthusiast"); !ok {
		t.Fatalf("expected name lookup to ignore case")
	}
	if _, ok := SegmentByName("RETURNING_CUSTOMER"); !ok {
		t.Fatalf("expected id lookup to ignore case")
	}
	if _, ok := SegmentByName("powersports influencer"); ok {
		t.Fatalf("unexpected match for unknown name")
	}
}

func TestSegmentForCategory(t *testing.T) {
	cases := []struct {
		category int
		want     string
	}{
		{CategorySuspension, SegmentMudEnthusiast},
		{CategoryWheels, SegmentMudEnthusiast},
		{CategoryAudio, SegmentMudEnthusiast},
		{CategoryDrivetrain, SegmentFeatureFocused},
		{CategoryPerformance, SegmentFeatureFocused},
		{CategoryStorage, SegmentPriceSensitive},
		{CategoryImplements, SegmentPriceSensitive},
		{CategoryLighting, SegmentNewVisitor},
		{99, SegmentNewVisitor},
	}
	for _, tc := range cases {
		if got := SegmentForCategory(tc.category); got.ID != tc.want {
			t.Fatalf("category %d: want %s, got %s", tc.category, tc.want, got.ID)
		}
	}
}

func TestPsychologicalPrice(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{9525, 9599},
		{9599, 9599},
		{10000, 10099},
		{99, 99},
		{0, 0},
	}
	for _, tc := range cases {
		if got := PsychologicalPrice(tc.in); got != tc.want {
			t.Fatalf("PsychologicalPrice(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDistinctViewed(t *testing.T) {
	v := VisitorSignal{ViewedProductIDs: []string{"a", "b", "a", " ", "c", "b"}}
	got := v.DistinctViewed()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}
