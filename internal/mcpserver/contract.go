package mcpserver

// SigilSyntaxContract describes how entry text is annotated so that LLM
// consumers write entries the journal can link and search.
const SigilSyntaxContract = `# dia Sigil Syntax

Entries are free text. People, projects and tags are marked inline with a
single-character sigil directly followed by a name.

| sigil | namespace | example     |
|-------|-----------|-------------|
| ` + "`@`" + `   | person    | ` + "`@Alice`" + `    |
| ` + "`%`" + `   | project   | ` + "`%Launch`" + `   |
| ` + "`#`" + `   | tag       | ` + "`#urgent`" + `   |

## Rules

1. **Names** are one word: letters, digits, combining marks, ` + "`_`" + ` and ` + "`-`" + `.
   Anything else ends the name (` + "`@Alice,`" + ` references ` + "`Alice`" + `).
2. **Case matters.** ` + "`@alice`" + ` and ` + "`@Alice`" + ` are different people.
3. **Namespaces are independent.** ` + "`@Atlas`" + ` and ` + "`%Atlas`" + ` are a person and a
   project that merely share a name.
4. **A bare sigil is plain text.** ` + "`# heading`" + ` or ` + "`50 %`" + ` reference nothing.
5. **Repeats are harmless.** Mentioning ` + "`@Bob`" + ` twice links the entry to Bob once.
6. **Dates** are ` + "`YYYY-MM-DD`" + ` and default to today. Entries cannot be edited
   after they are logged.

## Example

` + "```" + `
Met @Alice and @Bob about %Launch; blocked on %infra-migration #urgent #follow-up
` + "```" + `

links one entry to people Alice and Bob, projects Launch and infra-migration,
and tags urgent and follow-up.
`
