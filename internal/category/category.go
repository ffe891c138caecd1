package category

// Unknown is returned for any vendor code missing from a mapping table
const Unknown = "unknown"

// DefaultTypeMap returns the vendor vehicle class to local class table
func DefaultTypeMap() map[string]string {
	return map[string]string{
		"AT-SPG":     "TD",
		"mediumTank": "MT",
		"heavyTank":  "HT",
		"lightTank":  "LT",
		"SPG":        "SPG",
	}
}

// DefaultNationMap returns the vendor nation to local nation table
func DefaultNationMap() map[string]string {
	return map[string]string{
		"ussr":    "USSR",
		"usa":     "USA",
		"france":  "FR",
		"germany": "GE",
		"uk":      "UK",
		"china":   "CH",
		"japan":   "JP",
	}
}

// Translator converts vendor category codes into canonical local codes.
// The zero value translates with the default tables.
type Translator struct {
	types   map[string]string
	nations map[string]string
}

// NewTranslator builds a translator from the default tables with the given
// overrides applied on top. Either override map may be nil.
func NewTranslator(typeOverrides, nationOverrides map[string]string) Translator {
	types := DefaultTypeMap()
	for k, v := range typeOverrides {
		types[k] = v
	}

	nations := DefaultNationMap()
	for k, v := range nationOverrides {
		nations[k] = v
	}

	return Translator{types: types, nations: nations}
}

// TranslateType maps a vendor vehicle class to a local class code
func (t Translator) TranslateType(code string) string {
	if t.types == nil {
		return lookup(DefaultTypeMap(), code)
	}
	return lookup(t.types, code)
}

// TranslateNation maps a vendor nation to a local nation code
func (t Translator) TranslateNation(code string) string {
	if t.nations == nil {
		return lookup(DefaultNationMap(), code)
	}
	return lookup(t.nations, code)
}

func lookup(table map[string]string, code string) string {
	if v, ok := table[code]; ok && v != "" {
		return v
	}
	return Unknown
}

// TranslateType maps a vendor vehicle class using the default table
func TranslateType(code string) string {
	return Translator{}.TranslateType(code)
}

// TranslateNation maps a vendor nation using the default table
func TranslateNation(code string) string {
	return Translator{}.TranslateNation(code)
}
