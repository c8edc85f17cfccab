package service

import (
	crand "crypto/rand"
	"math/big"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/logger"
)

// GiftCodeGenerator 兑换码生成器
type GiftCodeGenerator struct {
	length      int
	maxAttempts int
	alphabet    string
}

// NewGiftCodeGenerator 创建兑换码生成器
func NewGiftCodeGenerator() *GiftCodeGenerator {
	return &GiftCodeGenerator{
		length:      constants.GiftCodeLength,
		maxAttempts: constants.GiftCodeMaxAttempts,
		alphabet:    constants.GiftCodeAlphabet,
	}
}

// Generate 生成未被占用的兑换码
// exists 回调用于查重；达到最大尝试次数仍冲突时返回 ErrGiftCodeSpaceExhausted。
// 查重与落库之间的竞态由 code 唯一索引兜底。
func (g *GiftCodeGenerator) Generate(exists func(code string) (bool, error)) (string, error) {
	if g == nil || exists == nil {
		return "", ErrGiftCodeSpaceExhausted
	}
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		code, err := g.randomCode()
		if err != nil {
			return "", err
		}
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	logger.Errorw("gift_code_space_exhausted",
		"length", g.length,
		"max_attempts", g.maxAttempts,
	)
	return "", ErrGiftCodeSpaceExhausted
}

func (g *GiftCodeGenerator) randomCode() (string, error) {
	size := big.NewInt(int64(len(g.alphabet)))
	buf := make([]byte, g.length)
	for i := range buf {
		idx, err := crand.Int(crand.Reader, size)
		if err != nil {
			return "", err
		}
		buf[i] = g.alphabet[idx.Int64()]
	}
	return string(buf), nil
}
