package speech

import (
	"bytes"
	"context"
	"time"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
	"go.uber.org/zap"
)

// Edge usa o serviço de leitura em voz alta do Microsoft Edge via
// edge-tts-go. Não precisa de credenciais; o áudio já vem em MP3.
type Edge struct {
	log *zap.Logger
}

func NewEdge(log *zap.Logger) *Edge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Edge{log: log}
}

func (e *Edge) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	start := time.Now()

	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return nil, rejected("edge: %v", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, unavailableErr("edge stream", err)
	}

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			// esvazia o canal para o produtor não ficar preso
			go func() {
				for range ch {
				}
			}()
			return nil, unavailableErr("edge", ctx.Err())
		case msg, ok := <-ch:
			if !ok {
				if buf.Len() == 0 {
					return nil, unavailable("edge returned no audio")
				}
				e.log.Debug("edge synthesize",
					zap.String("voice", voice),
					zap.Int("chars", len([]rune(text))),
					zap.Int("bytes", buf.Len()),
					zap.Duration("took", time.Since(start)),
				)
				return buf.Bytes(), nil
			}
			// entradas type=="audio" trazem os pedaços do MP3
			if t, _ := msg["type"].(string); t == "audio" {
				if data, ok := msg["data"].([]byte); ok {
					buf.Write(data)
				}
			}
		}
	}
}
