// Package voice holds the built-in narrator preset catalog. A preset's
// Description is the natural-language voice prompt handed to the generation
// backend; Name is what front ends show.
package voice

// Preset describes one built-in narrator voice.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Age         string `json:"age"`
	Accent      string `json:"accent"`
}

// PreviewText is a short passage used for voice auditioning, roughly thirty
// seconds when spoken.
const PreviewText = `The old library stood at the corner of Main Street, its weathered brick facade a testament to a century of stories.
Inside, dust motes danced in shafts of afternoon sunlight, and the familiar scent of aged paper and leather bindings welcomed every visitor.
Eleanor had discovered this sanctuary when she was just a child, and now, decades later, she still found magic between these walls.
Today she climbed the spiral staircase to the fiction section, her fingers trailing along the spines of countless adventures waiting to be discovered.`

var presets = []Preset{
	{
		Name:        "Professional Female Narrator",
		Description: "A female speaker with a warm, calm, and clear voice, delivering the narration in a standard American English accent. Her tone is engaging and pleasant, suitable for long listening sessions.",
		Category:    "female_professional",
		Age:         "40s",
		Accent:      "American",
	},
	{
		Name:        "Authoritative Male",
		Description: "A deep, resonant male voice in his 60s with a commanding yet warm presence. He speaks with a refined American accent, delivering each word with gravitas and authority, perfect for dramatic narration and non-fiction.",
		Category:    "male_professional",
		Age:         "60s",
		Accent:      "American",
	},
	{
		Name:        "Young Adult Female",
		Description: "A bright, energetic female voice in her early 20s with excellent articulation. Her delivery is expressive and dynamic, with a contemporary American accent that's perfect for young adult fiction and romance novels.",
		Category:    "female_young",
		Age:         "20s",
		Accent:      "American",
	},
	{
		Name:        "Distinguished British Male",
		Description: "A mature male speaker with a distinguished Received Pronunciation British accent. His voice is cultured and articulate, ideal for classical literature, historical fiction, and mystery novels.",
		Category:    "male_professional",
		Age:         "50s",
		Accent:      "British",
	},
	{
		Name:        "Soothing Female",
		Description: "A gentle, soothing female voice with a soft, melodic quality. She speaks slowly and calmly with a warm American accent, creating a peaceful atmosphere perfect for bedtime stories and relaxation content.",
		Category:    "female_soothing",
		Age:         "30s",
		Accent:      "American",
	},
	{
		Name:        "Conversational Male",
		Description: "A casual, friendly male voice in his 30s with a natural conversational tone. His American accent is neutral and approachable, making him ideal for non-fiction, memoirs, and contemporary fiction.",
		Category:    "male_casual",
		Age:         "30s",
		Accent:      "American",
	},
	{
		Name:        "Elegant Female",
		Description: "A refined female voice with impeccable diction and a sophisticated American accent. She delivers prose with artistic sensibility and emotional depth, perfect for literary fiction and poetry.",
		Category:    "female_professional",
		Age:         "40s",
		Accent:      "American",
	},
	{
		Name:        "Dramatic Male",
		Description: "A powerful, expressive male voice capable of rich dramatic range. His deep timbre and theatrical delivery bring epic fantasy and science fiction narratives to life with intensity and passion.",
		Category:    "male_dramatic",
		Age:         "40s",
		Accent:      "American",
	},
	{
		Name:        "Cheerful Female",
		Description: "An upbeat, animated female voice that's warm and inviting. She brings characters to life with playful energy and clear enunciation, perfect for children's literature and middle-grade fiction.",
		Category:    "female_young",
		Age:         "30s",
		Accent:      "American",
	},
	{
		Name:        "Wise Elder Male",
		Description: "A seasoned male voice in his 70s with a gentle, grandfatherly quality. His speech is measured and thoughtful with subtle warmth, ideal for philosophical works, memoirs, and inspirational content.",
		Category:    "male_mature",
		Age:         "70s",
		Accent:      "American",
	},
	{
		Name:        "Southern Female",
		Description: "A warm female voice with a gentle Southern American accent. Her drawl is authentic yet easy to understand, adding regional flavor perfect for Southern fiction and historical narratives.",
		Category:    "female_regional",
		Age:         "40s",
		Accent:      "Southern US",
	},
	{
		Name:        "Academic Male",
		Description: "A clear, articulate male voice with an educated mid-Atlantic accent. His delivery is precise and authoritative without being dry, excellent for academic texts, biographies, and historical non-fiction.",
		Category:    "male_professional",
		Age:         "50s",
		Accent:      "Mid-Atlantic",
	},
	{
		Name:        "Intimate Female",
		Description: "A sultry, expressive female voice with emotional depth and range. She delivers romantic passages with genuine warmth and sensuality, perfect for romance novels and intimate character-driven stories.",
		Category:    "female_expressive",
		Age:         "30s",
		Accent:      "American",
	},
	{
		Name:        "Youthful Male",
		Description: "An energetic male voice in his 20s with an adventurous spirit. His delivery is quick-paced and enthusiastic with clear American pronunciation, ideal for action-adventure and thriller genres.",
		Category:    "male_young",
		Age:         "20s",
		Accent:      "American",
	},
	{
		Name:        "Neutral Narrator",
		Description: "A balanced, versatile voice with neutral American pronunciation and moderate pacing. This narrator adapts well to any genre with professional clarity and consistent quality throughout long narrations.",
		Category:    "neutral_professional",
		Age:         "35-45",
		Accent:      "American",
	},
}

// Presets returns the full catalog in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// Lookup finds a preset by display name.
func Lookup(name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// ByCategory returns every preset in the given category.
func ByCategory(category string) []Preset {
	var out []Preset
	for _, p := range presets {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Categories returns the distinct category names in catalog order.
func Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range presets {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// Describe resolves a voice argument to a backend prompt. A known preset
// name maps to its description; anything else is treated as a literal
// voice prompt.
func Describe(nameOrPrompt string) string {
	if p, ok := Lookup(nameOrPrompt); ok {
		return p.Description
	}
	return nameOrPrompt
}
