package config

import "github.com/joho/godotenv"

// loadEnvFiles loads each file that exists. Variables already set in the
// process environment win over file values.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		_ = godotenv.Load(path)
	}
}
