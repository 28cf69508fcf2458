package utils

import "strings"

// NormalizeSkill maps free-form skill names coming from clients onto the
// canonical skill keys used for assignment slots. Unknown names pass
// through unchanged so the caller can reject them.
func NormalizeSkill(skill string) string {

	key := strings.ToLower(strings.TrimSpace(skill))

	skillMap := map[string]string{

		"dsa":             "DSA",
		"ds&a":            "DSA",
		"data structures": "DSA",
		"datastructures":  "DSA",
		"algorithms":      "DSA",
		"algo":            "DSA",

		"sql":      "SQL",
		"queries":  "SQL",
		"database": "DBMS",
		"dbms":     "DBMS",
		"db":       "DBMS",

		"js":          "JavaScript",
		"javascript":  "JavaScript",
		"java script": "JavaScript",
		"javscript":   "JavaScript",

		"java": "Java",

		"system design": "SystemDesign",
		"systemdesign":  "SystemDesign",
		"sys design":    "SystemDesign",
		"hld":           "SystemDesign",
		"lld":           "SystemDesign",

		"os":                "OperatingSystems",
		"operating systems": "OperatingSystems",
		"operatingsystems":  "OperatingSystems",

		"networking":        "Networking",
		"networks":          "Networking",
		"computer networks": "Networking",
		"cn":                "Networking",

		"aptitude": "Aptitude",
		"apti":     "Aptitude",
		"quant":    "Aptitude",

		"behavioral":  "Behavioral",
		"behavioural": "Behavioral",
		"hr":          "Behavioral",
	}

	if normalized, ok := skillMap[key]; ok {
		return normalized
	}

	return skill
}
