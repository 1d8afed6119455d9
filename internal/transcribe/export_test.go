package transcribe

// AudioTranscriber exposes the client interface for mocks.
type AudioTranscriber = audioTranscriber

// NewTestTranscriber creates an OpenAITranscriber around a mock client.
func NewTestTranscriber(client AudioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	return newTranscriber(client, opts...)
}

// Function exports for unit testing internal logic.
var ClassifyError = classifyError

// SplitArgs returns the ffmpeg arguments Split would use.
func (s *Splitter) SplitArgs(audioPath, dir string) []string { return s.args(audioPath, dir) }
