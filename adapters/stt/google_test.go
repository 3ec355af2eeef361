package stt_test

import (
	"github.com/lumenlabs/lumen-server/adapters/stt"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

var _ repositories.SpeechToText = &stt.GoogleSpeechToText{}
