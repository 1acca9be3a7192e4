package commentary

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the model's role for every request.
const SystemPrompt = "You are an expert audio commentator and music analyst. Respond with a single JSON object only."

const promptTemplate = `You are an expert audio commentator and music analyst. Your task is to provide two types of analysis for a music track named '%s'.
The music has been identified as %s.

Part 1: Commentary for Visualization
Provide time-stamped commentary in a JSON array. Each entry should have a "time" (in seconds) and a "commentary" string. The commentary should be educational and describe musical events based on the provided data.

Part 2: High-Level Narrative for Textual Report
Provide a high-level, narrative analysis in a paragraph format. This analysis should describe the overall dynamics (RMS), timbre (Spectral Centroid, ZCR, MFCCs), and rhythmic structure.

The final output must be a single JSON object with two keys: "commentary_data" (containing the JSON array from Part 1) and "report_narrative" (containing the string from Part 2).

Musicological Definitions:
- RMS (Loudness): Overall intensity. A rising RMS indicates a crescendo.
- Spectral Centroid (Brightness): Perceived brightness. A rising value means the sound is getting brighter.
- ZCR (Noisiness): The degree of noisiness or percussiveness. A higher value suggests a noisier texture.
- Key: The strongest detected pitch class. Changes may indicate harmonic shifts.
- MFCCs (Timbre): Mel-Frequency Cepstral Coefficients. They represent the tonal color or texture of the sound. Changes often indicate new instruments or vocal events.

Here is the audio analysis data:
%s
`

// BuildPrompt renders the commentary request for a track.
func BuildPrompt(fileName, tonality string, points []AnalysisPoint) string {
	lines := make([]string, len(points))
	for i, p := range points {
		lines[i] = p.String()
	}
	return fmt.Sprintf(promptTemplate, fileName, tonality, strings.Join(lines, "\n"))
}
