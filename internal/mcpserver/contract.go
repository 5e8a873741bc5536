package mcpserver

// EntryFormatContract describes the canonical journal entry format that
// LLM consumers should follow when creating entries.
const EntryFormatContract = `# Daybook Entry Format Contract

Every journal entry stored in Daybook MUST follow this structure.

## Structure

One entry per calendar date. Entries are plain UTF-8 text; on disk they are
separated by date lines the tool manages for you:

` + "```" + `text
--- 2025-01-20 ---
Entry text for January 20th.

--- 2025-01-21 ---
Entry text for January 21st.
` + "```" + `

When creating an entry via append_entry you supply ONLY the body text; the
separator line is added by the store.

## Rules

1. **One entry per date.** Creating a second entry for an existing date
   fails; read the entry and rewrite it instead.
2. **Dates** use YYYY-MM-DD. Loose forms (2025-1-5) are accepted and
   normalized.
3. **Plain text body.** No Markdown rendering is applied; write prose the
   way you would in a paper journal.
4. **Never write a line matching** ` + "`" + `--- YYYY-MM-DD ---` + "`" + ` inside the body.
   It would be read back as an entry separator and split the entry.
5. **Encoding** is UTF-8.

## Images

- Inline images use marker syntax: ` + "`" + `<<IMG:filename.png|400>>` + "`" + ` where the
  number is the display width in pixels (50 to 1000, default 400).
- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `marker` + "`" + ` field
  ready to paste into the entry body.
- Reference only assets that exist in the asset store; markers for missing
  assets are silently hidden when the entry is rendered.
- Supported formats: png, jpg, jpeg, gif, webp.

## Example

` + "```" + `text
Slept in, then walked to the harbor.

<<IMG:harbor-3f2a91bc.jpg|600>>

Coffee at the usual place. Started reading the new novel.
` + "```" + `
`
