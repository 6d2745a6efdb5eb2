package media

import "fmt"

const (
	imageFallback = "Unable to get description from Gemini."
	videoFallback = "Unable to get summary for this YouTube video."
)

const imagePrompt = `This image is from a learning unit. Please analyze it and explain its overall context, including the content and concepts it conveys.
Answer in at most 50 words of plain text.`

func transcriptPrompt(videoID, transcript string) string {
	return fmt.Sprintf(`I have a transcript from a YouTube video (ID: %s). Please provide detailed textbook content that converts it into professional prose, not conversational human speech.

TRANSCRIPT:
%s

Answer with the paragraphs of content only, in plain text.`, videoID, transcript)
}

func noTranscriptPrompt(videoID, url string) string {
	return fmt.Sprintf(`I have a YouTube video with ID: %s at URL: %s. Please provide a detailed textbook-style description of the video's content.
If you don't have access to the video's content, clearly state that and then offer a general, formal description of what the video might cover based on its URL and context.

Answer in plain text.`, videoID, url)
}

func segmentPrompt(videoID, from, to, transcript string) string {
	return fmt.Sprintf(`Here is the transcript of a segment of a YouTube video (ID: %s) from %s to %s.
Write a concise, formal summary of what this segment teaches, suitable for a textbook.

TRANSCRIPT:
%s

Answer in plain text.`, videoID, from, to, transcript)
}

func noSegmentTranscriptPrompt(videoID, from, to string) string {
	return fmt.Sprintf(`I need a concise summary of the segment from %s to %s of the YouTube video with ID: %s (https://www.youtube.com/watch?v=%s).
No transcript is available. If you don't have access to the video's content, clearly state that and then give a brief general description of what the segment might cover.

Answer in plain text.`, from, to, videoID, videoID)
}
