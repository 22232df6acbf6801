package chapel

import "embed"

// Assets holds the stylesheet and analytics beacon served under /public/.
//
//go:embed assets/*
var Assets embed.FS
