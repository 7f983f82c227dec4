package ident

// typeChart is the fixed 18x18 attacking/defending type-effectiveness
// table (spec.md §4.5 step 4: "compute the type-effectiveness multiplier
// (0, 1/4, 1/2, 1, 2, 4) from the defender's effective types"). Unlike
// species/move/ability data, type match-ups are a fixed rule of the type
// system itself rather than loaded catalog data, so they live here
// alongside the Type enum rather than behind DataStore.
//
// Values are numerators over a denominator of 2 (0, 1, 2, 4, 8 -> x0,
// x0.5, x1, x2, x4); Effectiveness returns the reduced Fraction.
var typeChart = map[Type]map[Type]int{
	Normal: {Rock: 1, Ghost: 0, Steel: 1},
	Fire:   {Fire: 1, Water: 1, Grass: 4, Ice: 4, Bug: 4, Rock: 1, Dragon: 1, Steel: 4},
	Water:  {Fire: 4, Water: 1, Grass: 1, Ground: 4, Dragon: 1},
	Electric: {Water: 4, Electric: 1, Grass: 1, Ground: 0, Flying: 4, Dragon: 1},
	Grass:    {Fire: 1, Water: 4, Grass: 1, Poison: 1, Ground: 4, Flying: 1, Bug: 1, Dragon: 1, Steel: 1},
	Ice:      {Fire: 1, Water: 1, Grass: 4, Ice: 1, Ground: 4, Flying: 4, Dragon: 4, Steel: 1},
	Fighting: {Normal: 4, Ice: 4, Poison: 1, Flying: 1, Psychic: 1, Bug: 1, Rock: 4, Ghost: 0, Dark: 4, Steel: 4, Fairy: 1},
	Poison:   {Grass: 4, Poison: 1, Ground: 1, Rock: 1, Ghost: 1, Steel: 0, Fairy: 4},
	Ground:   {Fire: 4, Electric: 4, Grass: 1, Poison: 4, Flying: 0, Bug: 1, Rock: 4, Steel: 4},
	Flying:   {Electric: 1, Grass: 4, Fighting: 4, Bug: 4, Rock: 1, Steel: 1},
	Psychic:  {Fighting: 4, Poison: 4, Psychic: 1, Dark: 0, Steel: 1},
	Bug:      {Fire: 1, Grass: 4, Fighting: 1, Poison: 1, Flying: 1, Psychic: 4, Ghost: 1, Dark: 4, Steel: 1, Fairy: 1},
	Rock:     {Fire: 4, Ice: 4, Fighting: 1, Ground: 1, Flying: 4, Bug: 4, Steel: 1},
	Ghost:    {Normal: 0, Psychic: 4, Ghost: 4, Dark: 1},
	Dragon:   {Dragon: 4, Steel: 1, Fairy: 0},
	Dark:     {Fighting: 1, Psychic: 4, Ghost: 4, Dark: 1, Fairy: 1},
	Steel:    {Fire: 1, Water: 1, Electric: 1, Ice: 4, Rock: 4, Steel: 1, Fairy: 4},
	Fairy:    {Fire: 1, Fighting: 4, Poison: 1, Dragon: 4, Dark: 4, Steel: 1},
}

// Effectiveness returns the multiplier of atk attacking a single
// defending type, as a Fraction with denominator 2 (so 4x double
// super-effective reduces to 4/1, 2x to 2/1, neutral to 1/1, half to
// 1/2, quarter to 1/4, immune to 0/1).
func Effectiveness(atk, def Type) Fraction {
	row, ok := typeChart[atk]
	if !ok {
		return Whole(1)
	}
	n, ok := row[def]
	if !ok {
		return Whole(1)
	}
	return F(int64(n), 2)
}

// CombinedEffectiveness multiplies the effectiveness of atk against every
// one of a dual-typed defender's types.
func CombinedEffectiveness(atk Type, defTypes []Type) Fraction {
	result := Whole(1)
	for _, d := range defTypes {
		result = result.Mul(Effectiveness(atk, d))
	}
	return result
}
