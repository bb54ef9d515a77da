package synthcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// keyVersion prefixa as chaves para permitir mudar a normalização sem
// colidir com entradas antigas.
const keyVersion = "v1"

// Key é a impressão digital de um par (voz, texto).
type Key string

// NormalizeText remove espaços das pontas e aplica NFC, para que grafias
// equivalentes em Unicode gerem a mesma chave e o mesmo áudio.
func NormalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

func NormalizeVoice(voice string) string {
	return strings.TrimSpace(voice)
}

// Fingerprint calcula sha256(len(voz) || voz || len(texto) || texto) sobre
// os valores normalizados, com tamanhos em uint32 big-endian. Voz e texto
// podem conter qualquer byte, inclusive NUL.
func Fingerprint(voice, text string) Key {
	h := sha256.New()
	writeField(h, NormalizeVoice(voice))
	writeField(h, NormalizeText(text))
	return Key(keyVersion + ":" + hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, v string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v)))
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(v))
}
