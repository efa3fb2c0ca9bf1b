package extraction

// extractionPrompt instructs the model to distill one document excerpt into
// the structured content schema. The response must be a bare JSON object.
const extractionPrompt = `You analyze document excerpts for slide deck creation.

Given one excerpt of a larger document, extract its structure. Respond with JSON only, using exactly this schema:
{
  "title": "document title if this excerpt reveals it, else empty string",
  "summary": "one or two sentences summarizing the excerpt",
  "keywords": ["up to 8 short keywords"],
  "sections": [
    {
      "heading": "short section heading",
      "content": "condensed section content",
      "points": [{"text": "key takeaway", "importance": 3}]
    }
  ]
}

Rules:
- importance is an integer from 1 (minor) to 5 (critical).
- Create between 1 and 5 sections per excerpt.
- Do not invent content that is not supported by the excerpt.
- Respond with the JSON object and nothing else.`
