package answerquestion

import "time"

type Config struct {
	// ChunkWords is the size of the text events cut from an answer the model did not stream.
	ChunkWords int
	// Timeout bounds one non-streamed turn started from a job.
	Timeout time.Duration
	// MaxBodyBytes caps the chat request body.
	MaxBodyBytes int64
}

func LoadConfig() *Config {
	return &Config{
		ChunkWords:   15,
		Timeout:      90 * time.Second,
		MaxBodyBytes: 64 << 10,
	}
}
