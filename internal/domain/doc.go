// Package domain contains the core business entities of the arcana API:
// reading jobs and their status state machine, the tarot card catalog
// types, the two-tier credit balance with its ledger transaction log, and
// referral links. Entities validate themselves and carry no persistence
// or transport concerns.
package domain
