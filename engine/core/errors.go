package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting    = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainNotCreated = errors.New("swapchain has not been created")
	ErrPoolExhausted       = errors.New("descriptor pool exhausted after retry")
	ErrLayoutHashCollision = errors.New("descriptor layout hash collision")
	ErrCacheDestroyed      = errors.New("descriptor layout cache already destroyed")
	ErrFenceTimeout        = errors.New("fence wait timed out")
	ErrDeviceLost          = errors.New("device lost")
	ErrNoSuitableDevice    = errors.New("no physical device meets the requirements")
	ErrNoMemoryType        = errors.New("no suitable memory type")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrBuilderIncomplete   = errors.New("builder is missing required state")
	ErrUnknown             = errors.New("unknown")
)
