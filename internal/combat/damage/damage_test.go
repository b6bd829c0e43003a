package damage

import (
	"testing"

	"github.com/feiai2017/gridcombat/internal/util"
)

func TestResolveArmorAbsorbsWithinCapacity(t *testing.T) {
	got := Resolve(Input{
		Raw:         100,
		Armor:       50,
		DamageType:  "kinetic",
		ArmorResist: map[string]float64{"kinetic": 0.5},
	})
	if got.ArmorDamage != 50 {
		t.Fatalf("armor damage = %d, want 50", got.ArmorDamage)
	}
	if got.HPDamage != 0 {
		t.Fatalf("hp damage = %d, want 0", got.HPDamage)
	}
	if got.ArmorRemaining != 0 {
		t.Fatalf("armor remaining = %d, want 0", got.ArmorRemaining)
	}
	if got.RawDamage != 100 {
		t.Fatalf("raw damage = %d, want 100", got.RawDamage)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantArmor int
		wantHP    int
		wantLeft  int
	}{
		{
			name:     "no armor goes to hp",
			in:       Input{Raw: 40, DamageType: "fire"},
			wantHP:   40,
			wantLeft: 0,
		},
		{
			name:     "hp resistance as percentage",
			in:       Input{Raw: 40, DamageType: "fire", HPResist: map[string]float64{"fire": 50}},
			wantHP:   20,
			wantLeft: 0,
		},
		{
			name:      "overflow spills to hp",
			in:        Input{Raw: 100, Armor: 30, DamageType: "kinetic"},
			wantArmor: 30,
			wantHP:    70,
			wantLeft:  0,
		},
		{
			name:      "piercing share skips armor",
			in:        Input{Raw: 100, Armor: 200, ArmorPiercing: 0.25, DamageType: "kinetic"},
			wantArmor: 75,
			wantHP:    25,
			wantLeft:  125,
		},
		{
			name:      "piercing as percentage",
			in:        Input{Raw: 100, Armor: 200, ArmorPiercing: 40, DamageType: "kinetic"},
			wantArmor: 60,
			wantHP:    40,
			wantLeft:  140,
		},
		{
			name:     "bypass ignores armor",
			in:       Input{Raw: 60, Armor: 100, BypassArmor: true, DamageType: "kinetic"},
			wantHP:   60,
			wantLeft: 100,
		},
		{
			name: "status damage multiplier applies first",
			in: Input{
				Raw: 50, DamageType: "fire",
				StatusDamage: map[string]float64{"fire": 2},
			},
			wantHP: 100,
		},
		{
			name: "environment scales both chains",
			in: Input{
				Raw: 100, Armor: 10, DamageType: "fire",
				Environment: map[string]float64{"fire": 0.5},
			},
			wantArmor: 10,
			wantHP:    40,
		},
		{
			name: "zero armor multiplier absorbs without wear",
			in: Input{
				Raw: 100, Armor: 10, DamageType: "emp",
				ArmorResist: map[string]float64{"emp": 0},
			},
			wantArmor: 0,
			wantHP:    0,
			wantLeft:  10,
		},
		{
			name:     "zero raw",
			in:       Input{Raw: 0, Armor: 5},
			wantLeft: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.in)
			if got.ArmorDamage != tt.wantArmor {
				t.Fatalf("armor damage = %d, want %d", got.ArmorDamage, tt.wantArmor)
			}
			if got.HPDamage != tt.wantHP {
				t.Fatalf("hp damage = %d, want %d", got.HPDamage, tt.wantHP)
			}
			if got.ArmorRemaining != tt.wantLeft {
				t.Fatalf("armor remaining = %d, want %d", got.ArmorRemaining, tt.wantLeft)
			}
		})
	}
}

func TestResolveNeverExceedsRaw(t *testing.T) {
	rng := util.New(11)
	types := []string{"fire", "kinetic"}
	for i := 0; i < 2000; i++ {
		in := Input{
			Raw:           rng.Intn(500),
			Armor:         rng.Intn(300),
			DamageType:    types[rng.Intn(len(types))],
			ArmorPiercing: rng.Float64(),
			ArmorResist:   map[string]float64{"fire": rng.Float64(), "kinetic": float64(rng.Intn(89) + 11)},
			HPResist:      map[string]float64{"fire": rng.Float64()},
			Environment:   map[string]float64{"kinetic": rng.Float64()},
			BypassArmor:   rng.Intn(4) == 0,
		}
		got := Resolve(in)
		if got.ArmorDamage < 0 || got.HPDamage < 0 || got.ArmorRemaining < 0 {
			t.Fatalf("negative result %+v for %+v", got, in)
		}
		if got.Total() > in.Raw {
			t.Fatalf("dealt %d > raw %d for %+v", got.Total(), in.Raw, in)
		}
		if got.ArmorRemaining > in.Armor {
			t.Fatalf("armor grew to %d from %d", got.ArmorRemaining, in.Armor)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := map[float64]float64{0.5: 0.5, 1: 1, 10: 10, 50: 0.5, 150: 1.5, -1: 0}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%v) = %v, want %v", in, got, want)
		}
	}
	if got := Multiplier(nil, "fire"); got != 1 {
		t.Fatalf("missing table multiplier = %v, want 1", got)
	}
}
