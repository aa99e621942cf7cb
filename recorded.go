package main

import "callsight/insight"

// demoCallDuration is the length of the bundled demo call in seconds,
// used when no audio file is supplied to review mode.
const demoCallDuration = 96

// demoCall returns the analysis snapshot of the bundled support call:
// a billing dispute that escalates, with the entities the backend
// extracted along the way.
func demoCall() insight.Snapshot {
	segs := []insight.Segment{
		{ID: 1, Speaker: "Agent", StartTime: 0, EndTime: 5.2,
			Text: "Thank you for calling Meridian Bank, this is Dana. How can I help you today?"},
		{ID: 2, Speaker: "Customer", StartTime: 5.8, EndTime: 13.4,
			Text: "Hi, I'm calling about a charge on my account I don't recognize. Two hundred and forty dollars from yesterday."},
		{ID: 3, Speaker: "Agent", StartTime: 14.0, EndTime: 19.6,
			Text: "I'm sorry to hear that. Can you confirm the last four digits of the account for me?"},
		{ID: 4, Speaker: "Customer", StartTime: 20.1, EndTime: 23.0,
			Text: "Sure, it's four seven one five."},
		{ID: 5, Speaker: "Agent", StartTime: 23.8, EndTime: 31.5,
			Text: "Thanks. I can see the charge, it was posted by an online merchant called NorthPeak Supplies."},
		{ID: 6, Speaker: "Customer", StartTime: 32.2, EndTime: 40.7,
			Text: "I've never heard of them. I didn't authorize this. This is the second time this has happened this year."},
		{ID: 7, Speaker: "Agent", StartTime: 41.3, EndTime: 48.9,
			Text: "I understand, that's frustrating. I'm going to open a dispute for this transaction right now."},
		{ID: 8, Speaker: "Customer", StartTime: 49.4, EndTime: 57.8,
			Text: "Last time it took three weeks to get my money back. I need this resolved faster or I'm closing the account."},
		{ID: 9, Speaker: "Agent", StartTime: 58.5, EndTime: 68.2,
			Text: "I hear you. I'm flagging this one as priority and issuing a provisional credit today while the dispute runs."},
		{ID: 10, Speaker: "Customer", StartTime: 68.9, EndTime: 73.1,
			Text: "Okay. And can you send me a confirmation by email?"},
		{ID: 11, Speaker: "Agent", StartTime: 73.8, EndTime: 82.4,
			Text: "Of course, I'll send it to the address on file, j.alvarez at example dot com. You'll also get a new card within five business days."},
		{ID: 12, Speaker: "Customer", StartTime: 83.0, EndTime: 87.5,
			Text: "Alright, thank you for sorting it out quickly this time."},
		{ID: 13, Speaker: "Agent", StartTime: 88.1, EndTime: 94.6,
			Text: "You're welcome. Is there anything else I can help you with today?"},
	}

	snap := insight.NewSnapshot()
	snap.RiskScore = 72
	snap.Sentiment = "Frustrated"
	snap.Segments = segs
	snap.Entities = []insight.Entity{
		{Type: "ORG", Value: "Meridian Bank", Context: "calling about a charge"},
		{Type: "PERSON", Value: "Dana", Context: "this is Dana"},
		{Type: "AMOUNT", Value: "$240.00", Context: "charge I don't recognize"},
		{Type: "ACCOUNT", Value: "****4715", Context: "last four digits"},
		{Type: "ORG", Value: "NorthPeak Supplies", Context: "online merchant"},
		{Type: "EMAIL", Value: "j.alvarez@example.com", Context: "address on file"},
	}
	return snap
}
