package storage

import (
	"strings"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
)

// NormalizeName is the canonical form of species and region names in the catalogs.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// DefaultSpecies is the breed catalog loaded by migrations and the memory store.
func DefaultSpecies() []livestock.Species {
	return []livestock.Species{
		{ID: 1, Name: "HOLSTEIN", Digit: 1},
		{ID: 2, Name: "BROWN SWISS", Digit: 2},
		{ID: 3, Name: "ANGUS", Digit: 3},
		{ID: 4, Name: "GYR", Digit: 4},
		{ID: 5, Name: "GIROLANDO", Digit: 5},
		{ID: 6, Name: "BRAHMAN", Digit: 6},
		{ID: 7, Name: "CRIOLLO", Digit: 7},
	}
}

// DefaultRegions lists the departments with their 2-digit ubigeo codes.
func DefaultRegions() []livestock.Region {
	names := []string{
		"AMAZONAS", "ANCASH", "APURIMAC", "AREQUIPA", "AYACUCHO", "CAJAMARCA",
		"CALLAO", "CUSCO", "HUANCAVELICA", "HUANUCO", "ICA", "JUNIN",
		"LA LIBERTAD", "LAMBAYEQUE", "LIMA", "LORETO", "MADRE DE DIOS", "MOQUEGUA",
		"PASCO", "PIURA", "PUNO", "SAN MARTIN", "TACNA", "TUMBES", "UCAYALI",
	}
	regions := make([]livestock.Region, 0, len(names))
	for i, name := range names {
		regions = append(regions, livestock.Region{ID: i + 1, Name: name, Code: i + 1})
	}
	return regions
}

// DefaultEventTypes seeds the event-type catalog.
func DefaultEventTypes() []livestock.EventType {
	return []livestock.EventType{
		{ID: 1, Name: "Mastitis", Group: livestock.EventGroupDisease, MultiAnimal: true},
		{ID: 2, Name: "Brucellosis", Group: livestock.EventGroupDisease, MultiAnimal: true},
		{ID: 3, Name: "Foot-and-mouth disease", Group: livestock.EventGroupDisease, MultiAnimal: true},
		{ID: 4, Name: "Antibiotic", Group: livestock.EventGroupTreatment, MultiAnimal: true},
		{ID: 5, Name: "Vaccination", Group: livestock.EventGroupTreatment, MultiAnimal: true},
		{ID: 6, Name: "Deworming", Group: livestock.EventGroupTreatment, MultiAnimal: true},
		{ID: 7, Name: "Milk quality test", Group: livestock.EventGroupQualityControl, MultiAnimal: true},
	}
}
