package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner
func PrintBanner(version string) {
	banner.PrintSimple("ClaimScope", version)
}

// PrintStartupSummary prints the settings an operator needs to see at boot
func PrintStartupSummary(config *Config) {
	fmt.Printf("  server      : http://%s:%d\n", config.Server.Host, config.Server.Port)
	fmt.Printf("  storage     : %s\n", config.Storage.Badger.Path)
	fmt.Printf("  prompts     : %s\n", config.Pipeline.PromptsDir)
	fmt.Printf("  llm         : %s\n", config.LLM.DefaultProvider)
	fmt.Printf("  admission   : %d slots, %ds timeout, %d retries/sweep\n",
		config.Scheduler.MaxConcurrentJobs, config.Scheduler.TimeoutSeconds, config.Scheduler.RetryCap)
	if config.Scheduler.Enabled {
		fmt.Printf("  sweep cron  : %s\n", config.Scheduler.Schedule)
	}
}
