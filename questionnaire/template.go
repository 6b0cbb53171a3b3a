// Package questionnaire holds the canonical medical history question catalog
// used to seed new forms.
package questionnaire

import "intake-backend/models"

// Version identifies the catalog revision. Forms created earlier keep the
// questions they were seeded with.
const Version = "2024-03-de-1"

type definition struct {
	id         string
	text       string
	answerType models.AnswerType
}

var catalog = []definition{
	{"current_complaints", "Jetzige Beschwerden, Gesundheitsstörungen", models.AnswerTypeString},
	{"fever", "Haben Sie Fieber?", models.AnswerTypeBoolean},
	{"headaches", "Leiden Sie an Kopfschmerzen (auch Druckgefühl im Kopf)?", models.AnswerTypeBoolean},
	{"eye_pain", "Haben Sie Augenschmerzen?", models.AnswerTypeBoolean},
	{"throat_pain", "Haben Sie Halsschmerzen oder Schluckbeschwerden?", models.AnswerTypeBoolean},
	{"Typhoid/paratyphoid/Ruhr", "Hatten Sie Typhoid/paratyphoid/Ruhr?", models.AnswerTypeBoolean},
	{"tuberculosis", "Hatten Sie Tuberkulose (Tbc)?", models.AnswerTypeBoolean},
	{"glaucoma", "Hatten Sie Grüner Star, Glaukom?", models.AnswerTypeBoolean},
	{"sinusitis", "Hatten Sie Nasen-Nebenhöhlenentzündungen?", models.AnswerTypeBoolean},
	{"thyroid_diseases", "Hatten Sie Schilddrüsenkrankheiten?", models.AnswerTypeBoolean},
	{"pneumonia", "Hatten Sie Lungen-, Rippenfellentzündung länger dauernde Bronchitis?", models.AnswerTypeBoolean},
	{"hypertension", "Hatten Sie hohen Blutdruck?", models.AnswerTypeBoolean},
	{"stroke", "Hatten Sie einen Schlaganfall oder Lähmungen?", models.AnswerTypeBoolean},
	{"heart_attack", "Hatten Sie einen Herzinfarkt?", models.AnswerTypeBoolean},
	{"heart_diseases", "Hatten Sie andere Herzkrankheiten oder Gefäßleiden?", models.AnswerTypeBoolean},
	{"diabetes", "Haben Sie eine Zuckerkrankheit (Diabetes)?", models.AnswerTypeBoolean},
	{"allergies", "Haben Sie Allergien oder Unverträglichkeiten (z.B. Penicillin, Röntgenkontrastmittel)?", models.AnswerTypeString},
	{"asthma", "Haben Sie Asthma oder Heuschnupfen?", models.AnswerTypeBoolean},
	{"gastrointestinal", "Hatten Sie Magen- oder Zwölffingerdarmgeschwür oder Verdauungsprobleme?", models.AnswerTypeBoolean},
	{"liver_diseases", "Hatten Sie Leber- oder Gallenerkrankungen?", models.AnswerTypeBoolean},
	{"kidney_diseases", "Leiden Sie an Nieren-, Harnleiter- oder Blasensteinen?", models.AnswerTypeBoolean},
	{"prostate", "Hatten Sie Erkrankungen der Vorsteherdrüse (Prostata)?", models.AnswerTypeBoolean},
	{"urination_problems", "Hatten Sie Schwierigkeiten beim Wasserlassen?", models.AnswerTypeBoolean},
	{"thyroid", "Hatten Sie Schilddrüsenerkrankungen?", models.AnswerTypeBoolean},
	{"cancer", "Haben oder hatten Sie Krebs (bösartige Tumore)?", models.AnswerTypeBoolean},
	{"epilepsy", "Hatten Sie Epilepsie (Krampfanfälle)?", models.AnswerTypeBoolean},
	{"operations", "Wurden Sie schon mal operiert/mehrfach operiert? Wenn ja, wann und was?", models.AnswerTypeString},
	{"xray_treatment", "Wurden Sie schon einmal mit Radium oder Röntgenstrahlen behandelt? Wenn ja, wann?", models.AnswerTypeString},
	{"last_xray", "Wann war die letzte Röntgenuntersuchung?", models.AnswerTypeString},
	{"medications", "Nehmen Sie regelmäßig Medikamente ein (auch Abführ-, Beruhigungs-, Schlaf- oder Kopfschmerzmittel)? Wenn ja, welche?", models.AnswerTypeString},
	{"hormones", "Nehmen oder nahmen Sie die Pille oder sonstige Hormonpräparate?", models.AnswerTypeBoolean},
	{"alcohol", "Trinken Sie regelmäßig alkoholische Getränke?", models.AnswerTypeBoolean},
	{"smoking", "Rauchen Sie gewohnheitsmäßig? Wenn ja, wieviel?", models.AnswerTypeString},
	{"drugs", "Nehmen oder nahmen Sie Drogen? Wenn ja, welche?", models.AnswerTypeString},
	{"sport", "Treiben Sie weniger als zweimal wöchentlich Sport?", models.AnswerTypeBoolean},
	{"family_history", "Sind in Ihrer Familie folgende Krankheiten vorgekommen (Diabetes, Herzinfarkt, Bluthochdruck, Krebs)?", models.AnswerTypeString},
	{"weight_gain", "Haben Sie innerhalb der letzten 12 Monate mehr als 5kg zugenommen?", models.AnswerTypeBoolean},
	{"weight_loss", "Haben Sie innerhalb der letzten 12 Monate mehr als 5kg abgenommen?", models.AnswerTypeBoolean},
	{"sleep_disorders", "Schlafen Sie schlecht oder schlafen Sie schlecht ein?", models.AnswerTypeBoolean},
	{"neurological", "Leiden Sie an einer Neurose oder anderen nervösen Beschwerden?", models.AnswerTypeBoolean},
	{"pregnancy", "Sind Sie schwanger?", models.AnswerTypeBoolean},
	{"sensory_disorders", "Leiden Sie an einer Sehstörung?", models.AnswerTypeBoolean},
	{"travelers", "Waren Sie in den letzten 12 Monaten in Mittelmeerländern, in Asien oder in den Tropen?", models.AnswerTypeBoolean},
	{"thirst", "Haben Sie auffallend großen Durst?", models.AnswerTypeBoolean},
	{"intimate_concerns", "Bedrückt Sie etwas erotisches (beruflich, privat oder in der Partnerschaft)?", models.AnswerTypeBoolean},
	{"health_affected_by_noise", "Fühlen Sie sich in Ihrer Gesundheit beeinträchtigt durch Lärm (Arbeitsplatz, Freizeit, Nachtruhe)?", models.AnswerTypeBoolean},
	{"health_affected_by_dust", "Fühlen Sie sich in Ihrer Gesundheit beeinträchtigt durch Staub/Rauch/Abgase (Arbeitsplatz, Wohnbereich)?", models.AnswerTypeBoolean},
	{"health_affected_by_shift_work", "Fühlen Sie sich in Ihrer Gesundheit beeinträchtigt durch Schichtarbeit?", models.AnswerTypeBoolean},
	{"family_high_blood_pressure", "Kommt hoher Blutdruck oder Schlaganfall in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_heart_attack", "Kommt Herzinfarkt in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_overweight", "Kommt Übergewicht in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_diabetes", "Kommen Zuckerkrankheiten (Diabetes) in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_gout", "Kommt Gicht in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_neurological", "Kommen Nerven-, Gemüts-, Geisteskrankheiten in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_epilepsy", "Kommt Epilepsie (Krampfanfälle) in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_tuberculosis", "Kommt Tuberkulose (Tbc) in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_gallstones", "Kommen Gallensteine, Nierensteine, Blasensteine in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_cancer", "Kommt Krebs (einschl. Blutkrebs) in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_addiction", "Kommen Suchtkrankheiten (Alkohol, Medikamente, Drogen) in Ihrer Familie vor?", models.AnswerTypeBoolean},
	{"family_other", "Kommen andere Krankheiten in Ihrer Familie vor? Wenn ja, welche?", models.AnswerTypeString},
	{"family_chronic_diseases", "Sind chronische Erkrankungen in der Familie bekannt? Wenn ja, welche?", models.AnswerTypeString},
	{"occupation", "Welche Tätigkeit üben Sie gegenwärtig aus?", models.AnswerTypeString},
	{"accident", "Liegt ein Unfall vor?", models.AnswerTypeBoolean},
	{"marital_status", "Familienstand (ledig, verheiratet, geschieden, verwitwet, getrennt lebend)?", models.AnswerTypeString},
	{"nationality", "Staatsangehörigkeit:", models.AnswerTypeString},
}

// DefaultQuestions returns a fresh copy of the catalog with every answer unset.
func DefaultQuestions() models.Questions {
	out := make(models.Questions, len(catalog))
	for i, d := range catalog {
		out[i] = models.Question{
			ID:         d.id,
			Text:       d.text,
			AnswerType: d.answerType,
			Answer:     models.NullAnswer(),
			Confidence: 0,
		}
	}
	return out
}

// Size returns the number of catalog questions.
func Size() int { return len(catalog) }
