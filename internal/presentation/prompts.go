package presentation

import (
	"strconv"
	"strings"
	"time"
)

var languages = map[string]string{
	"en-US": "English (US)",
	"pt":    "Portuguese",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"it":    "Italian",
	"ja":    "Japanese",
	"ko":    "Korean",
	"zh":    "Chinese",
	"ru":    "Russian",
	"hi":    "Hindi",
	"ar":    "Arabic",
}

// LanguageName returns the display name of a language code, or the code itself.
func LanguageName(code string) string {
	if name, ok := languages[code]; ok {
		return name
	}
	return code
}

const outlineSystemPrompt = `You are an expert presentation outline generator. Your task is to create a comprehensive and engaging presentation outline based on the user's topic.

Current Date: {currentDate}

## Outline Requirements:
- First generate an appropriate title for the presentation
- Generate exactly {numberOfCards} main topics
- Each topic should be a clear, engaging heading
- Include 2-3 bullet points per topic
- Use {language} language
- Use a {tone} tone
- Make topics flow logically from one to another
- Ensure topics are comprehensive and cover key aspects

## Output Format:
Start with the title in XML tags, then generate the outline in markdown format with each topic as a heading followed by bullet points.

Example:
<TITLE>Your Generated Presentation Title Here</TITLE>

# First Main Topic
- Key point about this topic
- Another important aspect
- Brief conclusion or impact

# Second Main Topic
- Main insight for this section
- Supporting detail or example
- Practical application or takeaway`

const slidesSystemPrompt = `You are an expert presentation designer. Turn the outline into exactly {numberOfCards} slides.

Current Date: {currentDate}
Language: {language}
Tone: {tone}

## Output Format:
Wrap every slide in a SECTION element. Do not use markdown code fences.

<PRESENTATION>
<SECTION layout="left">
<H1>Slide title</H1>
<BULLETS>
<DIV><H3>Point</H3><P>One or two sentences.</P></DIV>
<DIV><H3>Point</H3><P>One or two sentences.</P></DIV>
</BULLETS>
<IMG query="detailed description of a fitting image" />
</SECTION>
</PRESENTATION>

## Rules:
- Every slide starts with exactly one H1 heading
- layout is one of left, right or vertical; vary it between slides
- Use one of BULLETS, COLUMNS, ICONS, CYCLE, ARROWS, TIMELINE, PYRAMID, STAIRCASE, BOXES or COMPARE to structure the content, each item in a DIV
- Give every slide one IMG with a specific, visual query of at least ten words
- Keep text short; do not repeat the outline verbatim
- Escape &, < and > in text as &amp;, &lt; and &gt;`

func currentDate(now time.Time) string {
	return now.Format("Monday, January 2, 2006")
}

func fillPrompt(prompt string, req Request, now time.Time) string {
	return strings.NewReplacer(
		"{numberOfCards}", strconv.Itoa(req.Slides),
		"{language}", LanguageName(req.Language),
		"{tone}", req.Tone,
		"{currentDate}", currentDate(now),
	).Replace(prompt)
}

func outlineUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Create a presentation outline for: ")
	b.WriteString(req.Topic)
	if req.Source != "" {
		b.WriteString("\n\nBase the outline on this source material:\n\n")
		b.WriteString(req.Source)
	}
	if req.Research != "" {
		b.WriteString("\n\nIncorporate current insights from these web search results:\n\n")
		b.WriteString(strings.TrimSpace(req.Research))
	}
	return b.String()
}

func slidesUserPrompt(req Request, outline *Outline) string {
	var b strings.Builder
	if outline != nil && outline.Title != "" {
		b.WriteString("Title: " + outline.Title + "\n\n")
	}
	if req.Topic != "" {
		b.WriteString("Topic: " + req.Topic + "\n\n")
	}
	if outline != nil && len(outline.Items) > 0 {
		b.WriteString("Outline:\n\n")
		b.WriteString(strings.Join(outline.Items, "\n\n"))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
