package vision

import "github.com/aether-core/dashboard/internal/logger"

var log = logger.For("Vision")
