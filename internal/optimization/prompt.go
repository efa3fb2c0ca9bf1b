package optimization

// stylePrompt instructs the model to infer presentation context and pick a
// style from the renderable catalog.
const stylePrompt = `You choose visual styling for slide decks.

Given a drafted deck as JSON, infer its domain and tone and pick the best style. Respond with JSON only, using exactly this schema:
{
  "style": "professional | creative | academic | minimal",
  "domain": "one or two words, e.g. finance, research",
  "tone": "one or two words, e.g. formal, playful",
  "font_theme": "",
  "color_theme": ""
}

Rules:
- style must be exactly one of: professional, creative, academic, minimal.
- Leave font_theme and color_theme empty to accept the style's defaults.
- Respond with the JSON object and nothing else.`
