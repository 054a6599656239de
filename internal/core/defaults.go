package core

// DefaultCategories is the seed catalog, in insertion order.
var DefaultCategories = []string{
	// Schmerzen
	"Kopfschmerzen", "Migräne", "Nackenschmerzen", "Rückenschmerzen", "Gelenkschmerzen", "Muskelschmerzen", "Bauchschmerzen",
	// Erkältung/HNO
	"Halsschmerzen", "Schnupfen", "Verstopfte Nase", "Ohrenschmerzen", "Husten", "Nebenhöhlendruck",
	// Allgemein
	"Müdigkeit", "Erschöpfung", "Konzentrationsprobleme", "Schwindel", "Übelkeit",
	// Schlaf
	"Einschlafprobleme", "Durchschlafprobleme", "Nicht erholsamer Schlaf",
	// Psyche
	"Stress", "Innere Unruhe", "Niedergeschlagenheit",
}
