package intel

import (
	"regexp"
	"testing"
)

func TestScorer_CountsOccurrencesNotPresence(t *testing.T) {
	s := NewScorer(map[string]int{"urgent": 1, "verify": 1, "otp": 1}, nil)

	res := s.Score("urgent urgent urgent verify verify otp")
	if res.Delta != 6 {
		t.Fatalf("expected delta 6 (3+2+1), got %d", res.Delta)
	}
	if res.Matched["urgent"] != 3 || res.Matched["verify"] != 2 || res.Matched["otp"] != 1 {
		t.Fatalf("unexpected occurrence counts: %v", res.Matched)
	}
}

func TestScorer_WeightsMultiply(t *testing.T) {
	s := NewScorer(map[string]int{"otp": 2, "urgent": 1}, nil)

	res := s.Score("send otp now, otp is urgent")
	if res.Delta != 5 { // 2*2 + 1*1
		t.Fatalf("expected delta 5, got %d", res.Delta)
	}
}

func TestScorer_CaseInsensitive(t *testing.T) {
	s := NewScorer(map[string]int{"urgent": 1}, nil)

	res := s.Score("URGENT: respond Urgent-ly")
	if res.Delta != 2 {
		t.Fatalf("expected delta 2, got %d", res.Delta)
	}
}

func TestScorer_ShortMessageEarlyExit(t *testing.T) {
	s := NewScorer(map[string]int{"otp": 5}, DefaultExtractors())

	res := s.Score("otp")
	if res.Delta != 0 || len(res.Matched) != 0 || len(res.Extracted) != 0 {
		t.Fatalf("short message must score zero, got %+v", res)
	}
}

func TestScorer_ExtractionGatedOnKeywords(t *testing.T) {
	s := NewScorer(DefaultKeywords(), DefaultExtractors())

	// Contains a UPI handle but no suspicious vocabulary.
	res := s.Score("lunch payment went to someone@okbank today")
	if len(res.Extracted) != 0 {
		t.Fatalf("extractors must not run without keyword matches, got %v", res.Extracted)
	}

	// Same identifier with suspicious vocabulary present.
	res = s.Score("urgent: send money to someone@okbank")
	if len(res.Extracted) == 0 {
		t.Fatal("expected extraction once keywords matched")
	}
	if res.Extracted[0].Kind != KindUPI {
		t.Fatalf("expected upi item, got %+v", res.Extracted[0])
	}
}

func TestScorer_DuplicatesKeptAtExtraction(t *testing.T) {
	s := NewScorer(DefaultKeywords(), DefaultExtractors())

	res := s.Score("verify account scam@pay scam@pay scam@pay")
	upis := 0
	for _, it := range res.Extracted {
		if it.Kind == KindUPI {
			upis++
		}
	}
	if upis != 3 {
		t.Fatalf("expected 3 duplicate upi items, got %d", upis)
	}
}

func TestScorer_NilPatternFailsOpen(t *testing.T) {
	s := NewScorer(map[string]int{"urgent": 1}, []Extractor{
		{Kind: "broken", Pattern: nil},
		{Kind: "digits", Pattern: regexp.MustCompile(`\d+`)},
	})

	res := s.Score("urgent send 123456789 now")
	if res.Delta != 1 {
		t.Fatalf("expected delta 1, got %d", res.Delta)
	}
	if len(res.Extracted) != 1 || res.Extracted[0].Kind != "digits" {
		t.Fatalf("expected the working extractor to still run, got %v", res.Extracted)
	}
}

func TestDefaultExtractors_Patterns(t *testing.T) {
	s := NewScorer(DefaultKeywords(), DefaultExtractors())

	res := s.Score("urgent: pay fraud.pay@upi, account 123456789012, visit http://phish.example/x")

	kinds := map[string]int{}
	for _, it := range res.Extracted {
		kinds[it.Kind]++
	}
	if kinds[KindUPI] == 0 {
		t.Error("expected a upi match")
	}
	if kinds[KindAccount] == 0 {
		t.Error("expected an account match")
	}
	if kinds[KindURL] == 0 {
		t.Error("expected a url match")
	}
}
