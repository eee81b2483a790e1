package models

import (
	"reflect"
	"testing"
)

func TestStatusConditionStrings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status StatusCondition
		want   []string
	}{
		{0, nil},
		{3, []string{"Paralyze"}},
		{4 | 1<<8, []string{"Poison", "Flinch"}},
		{1, []string{"Burn"}},
		{6, []string{"Sleep"}},
	}
	for _, tt := range tests {
		got := tt.status.Strings()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Strings(%d): got %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestElementalTypeStrings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mask ElementalType
		want []string
	}{
		{1<<2 | 1<<5, []string{"Flying", "Rock"}},
		{32772, []string{"Dragon", "Flying"}}, // Altaria
		{1 << 9, []string{"Fire"}},
	}
	for _, tt := range tests {
		got := tt.mask.Strings()
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Strings(%d): got %v, want %v", tt.mask, got, tt.want)
		}
	}
}

func TestTaggify(t *testing.T) {
	t.Parallel()

	if got := Taggify([]string{"a"}); got != "[a]" {
		t.Errorf("Taggify: got %q", got)
	}
	if got := Taggify([]string{"a", "b", "c"}); got != "[a][b][c]" {
		t.Errorf("Taggify: got %q", got)
	}
	if got := Taggify(nil); got != "" {
		t.Errorf("Taggify(nil): got %q", got)
	}
}
