package templates

// Builtin returns fresh copies of the templates shipped with the service.
func Builtin() []Template {
	return []Template{
		{
			ID:   "soap",
			Name: "SOAP Note",
			Format: "DATE: [DATE]\nCLIENT: [CLIENT NAME]\n\nSUBJECTIVE:\n[SUBJECTIVE]\n\n" +
				"OBJECTIVE:\n[OBJECTIVE]\n\nASSESSMENT:\n[ASSESSMENT]\n\nPLAN:\n[PLAN]",
			Fields: []Field{
				{Label: "DATE", Placeholder: "[DATE]", Type: "date"},
				{Label: "CLIENT", Placeholder: "[CLIENT NAME]", Type: "text"},
				{Label: "SUBJECTIVE", Placeholder: "[SUBJECTIVE]", Type: "textarea"},
				{Label: "OBJECTIVE", Placeholder: "[OBJECTIVE]", Type: "textarea"},
				{Label: "ASSESSMENT", Placeholder: "[ASSESSMENT]", Type: "textarea"},
				{Label: "PLAN", Placeholder: "[PLAN]", Type: "textarea"},
			},
			Instructions: "SUBJECTIVE: reported symptoms, concerns and relevant history.\n" +
				"OBJECTIVE: observable behaviour, performance on tasks and measurements.\n" +
				"ASSESSMENT: clinical impression and progress toward goals.\n" +
				"PLAN: next steps, home practice and follow-up.",
		},
		{
			ID:     "dap",
			Name:   "DAP Note",
			Format: "DATE: [DATE]\nCLIENT: [CLIENT NAME]\n\nDATA:\n[DATA]\n\nASSESSMENT:\n[ASSESSMENT]\n\nPLAN:\n[PLAN]",
			Fields: []Field{
				{Label: "DATE", Placeholder: "[DATE]", Type: "date"},
				{Label: "CLIENT", Placeholder: "[CLIENT NAME]", Type: "text"},
				{Label: "DATA", Placeholder: "[DATA]", Type: "textarea"},
				{Label: "ASSESSMENT", Placeholder: "[ASSESSMENT]", Type: "textarea"},
				{Label: "PLAN", Placeholder: "[PLAN]", Type: "textarea"},
			},
			Instructions: "DATA: both what the client reports and what was observed.\n" +
				"ASSESSMENT: clinical impressions and evaluation of status.\n" +
				"PLAN: recommendations, referrals and follow-up care.",
		},
		{
			ID:   "psychotherapy",
			Name: "Psychotherapy Note",
			Format: "DATE: [DATE]\nSTART TIME: [START TIME]\nEND TIME: [END TIME]\nSESSION LENGTH: [LENGTH] minutes\n\n" +
				"PRESENTING ISSUES:\n[PRESENTING ISSUES]\n\nMENTAL STATUS:\n[MENTAL STATUS]\n\n" +
				"INTERVENTIONS:\n[INTERVENTIONS]\n\nPLAN & RECOMMENDATIONS:\n[PLAN]",
			Fields: []Field{
				{Label: "DATE", Placeholder: "[DATE]", Type: "date"},
				{Label: "START TIME", Placeholder: "[START TIME]", Type: "text"},
				{Label: "END TIME", Placeholder: "[END TIME]", Type: "text"},
				{Label: "SESSION LENGTH", Placeholder: "[LENGTH]", Type: "text", Suffix: "minutes"},
				{Label: "PRESENTING ISSUES", Placeholder: "[PRESENTING ISSUES]", Type: "textarea"},
				{Label: "MENTAL STATUS", Placeholder: "[MENTAL STATUS]", Type: "textarea"},
				{Label: "INTERVENTIONS", Placeholder: "[INTERVENTIONS]", Type: "textarea"},
				{Label: "PLAN & RECOMMENDATIONS", Placeholder: "[PLAN]", Type: "textarea"},
			},
			IncludeCPTCodes: true,
		},
		{
			ID:   "intake",
			Name: "Intake Assessment",
			Format: "DATE: [DATE]\nCLIENT NAME: [NAME]\nDOB: [DOB]\n\nCHIEF COMPLAINT:\n[COMPLAINT]\n\n" +
				"HISTORY OF PRESENT ILLNESS:\n[HISTORY]\n\nPAST PSYCHIATRIC HISTORY:\n[PAST HISTORY]\n\n" +
				"MEDICAL HISTORY:\n[MEDICAL HISTORY]\n\nFAMILY HISTORY:\n[FAMILY HISTORY]\n\n" +
				"MENTAL STATUS EXAMINATION:\n[MSE]\n\nDIAGNOSIS:\n[DIAGNOSIS]\n\nTREATMENT PLAN:\n[PLAN]",
			Fields: []Field{
				{Label: "DATE", Placeholder: "[DATE]", Type: "date"},
				{Label: "CLIENT NAME", Placeholder: "[NAME]", Type: "text"},
				{Label: "DOB", Placeholder: "[DOB]", Type: "text"},
				{Label: "CHIEF COMPLAINT", Placeholder: "[COMPLAINT]", Type: "textarea"},
				{Label: "HISTORY OF PRESENT ILLNESS", Placeholder: "[HISTORY]", Type: "textarea"},
				{Label: "PAST PSYCHIATRIC HISTORY", Placeholder: "[PAST HISTORY]", Type: "textarea"},
				{Label: "MEDICAL HISTORY", Placeholder: "[MEDICAL HISTORY]", Type: "textarea"},
				{Label: "FAMILY HISTORY", Placeholder: "[FAMILY HISTORY]", Type: "textarea"},
				{Label: "MENTAL STATUS EXAMINATION", Placeholder: "[MSE]", Type: "textarea"},
				{Label: "DIAGNOSIS", Placeholder: "[DIAGNOSIS]", Type: "textarea"},
				{Label: "TREATMENT PLAN", Placeholder: "[PLAN]", Type: "textarea"},
			},
			IncludeCPTCodes: true,
		},
	}
}
