package main

var requestVariants = []requestVariant{
	{Key: "questions", Header: "Async (blocking)", Path: "/v1/questions", Check: checkResults, Aliases: []string{"async"}},
	{Key: "questions_sync", Header: "Sync (realtime)", Path: "/v1/questions/sync", Check: checkResults, Aliases: []string{"sync"}},
	{Key: "jobs", Header: "Async (submit + poll)", Path: "/v1/jobs", Check: checkJob, Aliases: []string{"submit"}},
	{Key: "malformed", Header: "Malformed input", Path: "/v1/questions", Check: checkMalformed, Aliases: []string{"bad_request"}},
}

// referencePayload is a single answer over a single context.
var referencePayload = map[string]any{
	"answers":  [][]string{{"CEO"}},
	"contexts": []string{"Sylvain is the CEO of Botpress."},
}

// malformedPayload has one answer list too many.
var malformedPayload = map[string]any{
	"answers":  [][]string{{"CEO"}, {"Botpress"}},
	"contexts": []string{"Sylvain is the CEO of Botpress."},
}
