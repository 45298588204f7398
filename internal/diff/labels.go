package diff

import "github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"

// fieldLabels maps dot-notation field paths to the labels shown in diff
// listings and the review queue. Unknown paths fall back to the raw path.
var fieldLabels = map[string]string{
	"hasAllergies":                "¿Tiene alergias?",
	"hasActiveMedications":        "¿Toma medicamentos actualmente?",
	"hasChronicConditions":        "¿Padece enfermedades crónicas?",
	"isPregnant":                  "¿Está embarazada?",
	"chiefComplaint":              "Motivo de consulta",
	"painIntensity":               "Intensidad del dolor",
	"perceivedUrgency":            "Urgencia percibida",
	"bruxism":                     "Bruxismo",
	"brushingFrequency":           "Frecuencia de cepillado",
	"usesFloss":                   "Usa hilo dental",
	"smokes":                      "Fuma",
	"alcoholUse":                  "Consumo de alcohol",
	"lastDentalVisit":             "Última visita dental",
	"notes":                       "Notas",
	"payload.isPregnant":          "¿Está embarazada?",
	"payload.pregnancyWeeks":      "Semanas de embarazo",
	models.CollectionAllergies:   "Alergias",
	models.CollectionMedications: "Medicamentos",
	models.CollectionConditions:  "Enfermedades crónicas",
}

// LabelFor resolves the display label for a field path.
func LabelFor(fieldPath string) string {
	if label, ok := fieldLabels[fieldPath]; ok {
		return label
	}
	return fieldPath
}
