// Package tiltbot implements a Discord community bot built around a
// channel counting game, recurring announcements, and a word-of-the-day
// delivery.
//
// Key components of the package include:
//
//   - TiltBot: The main struct that wires everything together.
//   - CountingGame: The counting game's in-memory state cache, with a
//     write-behind flush to the database.
//   - Announcer: Fires recurring announcements on a polling schedule.
//   - WOTD: Fetches and delivers a word of the day per guild, at that
//     guild's configured local hour.
//   - Discord: Handles the Discord gateway session and slash commands.
//   - API: An optional admin HTTP API for status and configuration.
//
// The bot supports these commands:
//
//   - /setup: Enable or disable features (counting, welcome, goodbye).
//   - /config: View and customize per-guild messages.
//   - /announce: Create, list, preview, and stop announcements.
//   - /wotd: Configure word-of-the-day delivery.
//   - /chat: Talk to the bot (OpenAI-backed, if configured).
//
// Per-guild configuration lives in a single database row per guild.
// The counting game keeps its state in memory and writes it back every
// few minutes; only a broken streak is persisted synchronously.
package tiltbot
