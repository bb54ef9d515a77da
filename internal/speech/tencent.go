package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"
	"go.uber.org/zap"
)

type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	Logger    *zap.Logger
}

// Tencent usa o TTS do Tencent Cloud. A voz é o VoiceType numérico
// (ex.: "1001").
type Tencent struct {
	client *tts.Client
	log    *zap.Logger
}

func NewTencent(cfg TencentConfig) (*Tencent, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, errors.New("tencent: secret id and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tts.NewClient(common.NewCredential(cfg.SecretID, cfg.SecretKey), cfg.Region, cpf)
	if err != nil {
		return nil, err
	}
	return &Tencent{client: client, log: cfg.Logger}, nil
}

func (t *Tencent) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	voiceType, err := strconv.ParseInt(voice, 10, 64)
	if err != nil {
		return nil, rejected("tencent voice must be numeric, got %q", voice)
	}

	req := tts.NewTextToVoiceRequest()
	req.Text = common.StringPtr(text)
	req.SessionId = common.StringPtr(uuid.NewString())
	req.VoiceType = common.Int64Ptr(voiceType)
	req.Codec = common.StringPtr("mp3")

	start := time.Now()
	resp, err := t.client.TextToVoiceWithContext(ctx, req)
	if err != nil {
		return nil, classifyTencent(err)
	}
	if resp.Response == nil || resp.Response.Audio == nil {
		return nil, unavailable("tencent returned no audio")
	}

	audio, err := base64.StdEncoding.DecodeString(*resp.Response.Audio)
	if err != nil {
		return nil, unavailableErr("tencent decode audio", err)
	}
	if len(audio) == 0 {
		return nil, unavailable("tencent returned empty audio")
	}

	t.log.Debug("tencent synthesize",
		zap.Int64("voice_type", voiceType),
		zap.Int("chars", len([]rune(text))),
		zap.Int("bytes", len(audio)),
		zap.Duration("took", time.Since(start)),
	)
	return audio, nil
}

// classifyTencent separa erros de parâmetro (permanentes) do resto.
func classifyTencent(err error) error {
	var sdkErr *sdkerrors.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		code := sdkErr.GetCode()
		if strings.HasPrefix(code, "InvalidParameter") || strings.HasPrefix(code, "UnsupportedOperation") {
			return rejected("tencent %s: %s", code, sdkErr.GetMessage())
		}
	}
	return unavailableErr("tencent", err)
}
