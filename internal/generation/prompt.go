package generation

// generationPrompt instructs the model to lay out slides from structured
// content. Styling is explicitly out of scope for this stage.
const generationPrompt = `You design slide deck outlines.

Given structured document content as JSON, lay out a slide deck. Respond with JSON only, using exactly this schema:
{
  "title": "deck title",
  "slides": [
    {"kind": "title", "title": "deck title"},
    {"kind": "content", "title": "slide title", "bullets": ["point", "point"]},
    {"kind": "summary", "title": "Summary", "bullets": ["takeaway"]}
  ]
}

Rules:
- The first slide must have kind "title" and the last must have kind "summary".
- Aim for 3 to 6 bullets per content slide, ordered by importance.
- Prefer sections whose role is not "body-sample" when content conflicts; sampled sections are representative, not exhaustive.
- No styling, fonts, or colors. Structure only.
- Respond with the JSON object and nothing else.`
