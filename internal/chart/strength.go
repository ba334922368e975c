package chart

import "math"

// NormalizeStrength clamps every component to be non-negative, fills missing
// components with zero, takes the supplied total or else the component sum,
// and rounds everything half-up to two decimals. nil stays nil.
func NormalizeStrength(raw *PartialStrength) *Strength {
	if raw == nil {
		return nil
	}
	s := Strength{
		Sthana:     component(raw.Sthana),
		Dig:        component(raw.Dig),
		Kala:       component(raw.Kala),
		Chestha:    component(raw.Chestha),
		Naisargika: component(raw.Naisargika),
	}
	total := s.Sthana + s.Dig + s.Kala + s.Chestha + s.Naisargika
	if raw.Total != nil {
		total = component(raw.Total)
	}
	s.Total = round2(math.Max(total, 0))
	s.Sthana = round2(s.Sthana)
	s.Dig = round2(s.Dig)
	s.Kala = round2(s.Kala)
	s.Chestha = round2(s.Chestha)
	s.Naisargika = round2(s.Naisargika)
	return &s
}

// Partial returns s with every field present, total included.
func (s Strength) Partial() *PartialStrength {
	return &PartialStrength{
		Sthana:     ptr(s.Sthana),
		Dig:        ptr(s.Dig),
		Kala:       ptr(s.Kala),
		Chestha:    ptr(s.Chestha),
		Naisargika: ptr(s.Naisargika),
		Total:      ptr(s.Total),
	}
}

func component(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return math.Max(*v, 0)
}

func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func ptr[T any](v T) *T { return &v }
