package catalog

// Built-in tables. Reference ranges are adult general-population values;
// within-subject CVs follow published biological-variation estimates.

func defaultSourcePriority() []string {
	return []string{"whoop", "oura", "garmin", "apple_health", "fitbit", "manual"}
}

func defaultBiomarkers() []BiomarkerRef {
	return []BiomarkerRef{
		{
			Key: "fasting_glucose", Unit: "mg/dL",
			RefLow: 65, RefHigh: 99, OptimalLow: 72, OptimalHigh: 90,
			Polarity: MidOptimal, WithinSubjectCV: 0.056,
			Domains: []string{DomainMetabolic},
			Systems: []string{SystemMetabolic},
		},
		{
			Key: "hba1c", Unit: "%",
			RefLow: 4.0, RefHigh: 5.6, OptimalLow: 4.5, OptimalHigh: 5.2,
			Polarity: LowerBetter, WithinSubjectCV: 0.018,
			Domains: []string{DomainMetabolic},
			Systems: []string{SystemMetabolic},
		},
		{
			Key: "fasting_insulin", Unit: "uIU/mL",
			RefLow: 2, RefHigh: 19, OptimalLow: 2, OptimalHigh: 6,
			Polarity: LowerBetter, WithinSubjectCV: 0.21,
			Domains: []string{DomainMetabolic},
			Systems: []string{SystemMetabolic},
		},
		{
			Key: "triglycerides", Unit: "mg/dL",
			RefLow: 30, RefHigh: 149, OptimalLow: 40, OptimalHigh: 90,
			Polarity: LowerBetter, WithinSubjectCV: 0.20,
			Domains: []string{DomainMetabolic, DomainCardiovascular},
			Systems: []string{SystemMetabolic, SystemCardiovascular},
		},
		{
			Key: "hdl_cholesterol", Unit: "mg/dL",
			RefLow: 40, RefHigh: 100, OptimalLow: 55, OptimalHigh: 90,
			Polarity: HigherBetter, WithinSubjectCV: 0.072,
			Domains: []string{DomainCardiovascular},
			Systems: []string{SystemCardiovascular},
		},
		{
			Key: "ldl_cholesterol", Unit: "mg/dL",
			RefLow: 40, RefHigh: 129, OptimalLow: 50, OptimalHigh: 99,
			Polarity: LowerBetter, WithinSubjectCV: 0.083,
			Domains: []string{DomainCardiovascular},
			Systems: []string{SystemCardiovascular},
		},
		{
			Key: "apob", Unit: "mg/dL",
			RefLow: 40, RefHigh: 110, OptimalLow: 50, OptimalHigh: 80,
			Polarity: LowerBetter, WithinSubjectCV: 0.069,
			Domains: []string{DomainCardiovascular},
			Systems: []string{SystemCardiovascular},
		},
		{
			Key: "hs_crp", Unit: "mg/L",
			RefLow: 0, RefHigh: 3.0, OptimalLow: 0, OptimalHigh: 0.9,
			Polarity: LowerBetter, WithinSubjectCV: 0.42,
			Domains: []string{DomainCardiovascular, DomainRecovery},
			Systems: []string{SystemCardiovascular, SystemRecovery},
		},
		{
			Key: "cortisol_am", Unit: "ug/dL",
			RefLow: 6, RefHigh: 23, OptimalLow: 10, OptimalHigh: 18,
			Polarity: MidOptimal, WithinSubjectCV: 0.21,
			Domains: []string{DomainRecovery, DomainSleep},
			Systems: []string{SystemRecovery},
		},
		{
			Key: "vitamin_d", Unit: "ng/mL",
			RefLow: 30, RefHigh: 100, OptimalLow: 40, OptimalHigh: 60,
			Polarity: MidOptimal, WithinSubjectCV: 0.12,
			Domains: []string{DomainRecovery, DomainBodyComp},
			Systems: []string{SystemStructural, SystemRecovery},
		},
		{
			Key: "ferritin", Unit: "ng/mL",
			RefLow: 30, RefHigh: 300, OptimalLow: 50, OptimalHigh: 150,
			Polarity: MidOptimal, WithinSubjectCV: 0.14,
			Domains: []string{DomainRecovery, DomainMetabolic},
			Systems: []string{SystemMetabolic},
		},
		{
			Key: "alt", Unit: "U/L",
			RefLow: 7, RefHigh: 40, OptimalLow: 10, OptimalHigh: 25,
			Polarity: LowerBetter, WithinSubjectCV: 0.18,
			Domains: []string{DomainMetabolic},
			Systems: []string{SystemMetabolic},
		},
		{
			Key: "creatinine", Unit: "mg/dL",
			RefLow: 0.6, RefHigh: 1.3, OptimalLow: 0.7, OptimalHigh: 1.1,
			Polarity: MidOptimal, WithinSubjectCV: 0.053,
			Domains: []string{DomainMetabolic},
			Systems: []string{SystemMetabolic},
		},
		{
			Key: "free_testosterone", Unit: "pg/mL",
			RefLow: 5, RefHigh: 21, OptimalLow: 9, OptimalHigh: 18,
			Polarity: MidOptimal, WithinSubjectCV: 0.17,
			Domains: []string{DomainBodyComp, DomainRecovery},
			Systems: []string{SystemStructural},
		},
	}
}

func defaultMetrics() []MetricRef {
	return []MetricRef{
		{
			Type: "hrv", Polarity: HigherBetter,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 1.0,
			Domains:       []string{DomainRecovery, DomainCardiovascular},
			Systems:       []string{SystemRecovery, SystemCardiovascular},
			FatigueMetric: true,
		},
		{
			Type: "resting_hr", Polarity: LowerBetter,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 0.8,
			Domains:       []string{DomainRecovery, DomainCardiovascular},
			Systems:       []string{SystemRecovery, SystemCardiovascular},
			FatigueMetric: true,
		},
		{
			Type: "vo2max", Polarity: HigherBetter,
			MinWindowDays: 21, PreferredWindowDays: 56, Importance: 1.2,
			Domains: []string{DomainCardiovascular},
			Systems: []string{SystemCardiovascular},
		},
		{
			Type: "sleep_score", Polarity: HigherBetter,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 0.7,
			Domains:       []string{DomainSleep, DomainRecovery},
			Systems:       []string{SystemRecovery},
			FatigueMetric: true,
		},
		{
			Type: "sleep_duration", Polarity: MidOptimal,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 0.5,
			Domains: []string{DomainSleep},
			Systems: []string{SystemRecovery},
		},
		{
			Type: "body_fat_pct", Polarity: LowerBetter,
			MinWindowDays: 21, PreferredWindowDays: 56, Importance: 0.9,
			Domains: []string{DomainBodyComp, DomainMetabolic},
			Systems: []string{SystemStructural, SystemMetabolic},
		},
		{
			Type: "lean_mass", Polarity: HigherBetter,
			MinWindowDays: 21, PreferredWindowDays: 56, Importance: 0.9,
			Domains: []string{DomainBodyComp},
			Systems: []string{SystemStructural},
		},
		{
			Type: "respiratory_rate", Polarity: LowerBetter,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 0.4,
			Domains: []string{DomainRecovery, DomainSleep},
			Systems: []string{SystemRecovery},
		},
		{
			Type: "steps", Polarity: HigherBetter,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 0.3,
			Domains:    []string{DomainMetabolic},
			Systems:    []string{SystemMetabolic},
			LoadMetric: true,
		},
		{
			Type: "active_calories", Polarity: HigherBetter,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 0.3,
			Domains:    []string{DomainMetabolic},
			Systems:    []string{SystemMetabolic},
			LoadMetric: true,
		},
		{
			Type: "exercise_minutes", Polarity: HigherBetter,
			MinWindowDays: 14, PreferredWindowDays: 28, Importance: 0.3,
			Domains:    []string{DomainCardiovascular},
			Systems:    []string{SystemCardiovascular},
			LoadMetric: true,
		},
	}
}
