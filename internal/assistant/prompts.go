package assistant

import (
	"fmt"
	"strings"

	"github.com/dvloznov/saku-tracker/internal/domain"
)

const (
	welcomeText = "Halo! Aku SakuBot 🤖. Mau curhat keuangan atau catat transaksi? Bilang aja!"

	fallbackConnection = "Waduh, koneksi ke otak AI terputus sebentar. Coba lagi ya!"
	fallbackNoText     = "Maaf, saya tidak mengerti."
	fallbackAfterSave  = "Berhasil disimpan, tapi saya lupa mau bilang apa."
	fallbackFollowup   = "Oke!"
	fallbackToolLoop   = "Maaf, ada kesalahan saat memproses permintaanmu."

	fallbackInsight       = "Gagal menganalisis pengeluaran saat ini. Semua pengeluaran dianggap keinginan sampai analisis berhasil."
	noExpensesInsight     = "Belum ada pengeluaran untuk dianalisis pada periode ini."
	fallbackReasoning     = "Gagal menganalisis. Coba lagi."
	fallbackRecommend     = "Pikirkan kembali."
	fallbackAlternatives  = "-"
	fallbackAdvice        = "Terjadi kesalahan saat menghubungi asisten AI. Pastikan API Key valid."
	fallbackAdviceNoReply = "Maaf, saya tidak bisa menganalisis data saat ini."

	advisorSystem       = "Kamu adalah asisten keuangan SakuPintar yang cerdas dan ramah."
	categoryMatchSystem = "You map free text onto one category name. Reply with the category name only."
)

func chatSystemInstruction(cats domain.CategorySet) string {
	return fmt.Sprintf(`Kamu adalah "SakuBot", teman chat AI di aplikasi SakuPintar.

TUGAS UTAMA:
1. Jawab pertanyaan siswa tentang keuangan dengan santai.
2. BANTU MENCATAT TRANSAKSI. Jika user ingin mencatat pengeluaran/pemasukan, GUNAKAN tool '%s'.
3. Analisis Kebutuhan vs Keinginan jika diminta.

KATEGORI YANG TERSEDIA:
- Pemasukan: %s
- Pengeluaran: %s

PRINSIP CSIZ (Kejar target ini):
- Konsumsi (C) <= 65%%
- Tabungan (S) >= 10%% (Kategori: Tabungan)
- Investasi (I) >= 20%% (Kategori: Investasi)
- ZIS (Z) >= 5%% (Kategori: Zakat/Infaq/Sedekah)

Gunakan emoji, jadilah ramah dan memotivasi!`,
		AddTransactionTool, strings.Join(cats.Income, ", "), strings.Join(cats.Expense, ", "))
}

func classifyPrompt(expenses []domain.Transaction) string {
	var b strings.Builder
	b.WriteString("Analyze the following list of expenses for a student:\n")
	for _, t := range expenses {
		item := t.Description
		if item == "" {
			item = t.Category
		}
		fmt.Fprintf(&b, "ID: %s, Item: %s, Amount: %s, Category: %s\n", t.ID, item, t.Amount.String(), t.Category)
	}
	b.WriteString(`
Tasks:
1. Classify each transaction ID as either "NEED" (Kebutuhan) or "WANT" (Keinginan).
   - NEEDS: essentials like regular food, transport, school supplies, Zakat/Infaq.
   - WANTS: entertainment, games, expensive snacks, impulse buys.
2. Provide a short "insight" paragraph summarizing their spending behavior based on this split.

Return ONLY raw JSON with this structure:
{"breakdown": [{"id": "string", "verdict": "NEED" | "WANT"}], "insight": "string"}
`)
	return b.String()
}

func purchasePrompt(item, price, reason string) string {
	return fmt.Sprintf(`Analyze this potential purchase for a student:
Item: %q
Price: Rp %s
Reason: %q

Task:
1. Determine if this is a "NEED" (Kebutuhan) or "WANT" (Keinginan).
2. Assign a necessity score (0-100).
3. Provide reasoning, recommendation, and alternatives.

Return ONLY raw JSON with this structure:
{"verdict": "NEED" | "WANT", "score": number, "reasoning": "string", "recommendation": "string", "alternatives": "string"}
`, item, price, reason)
}

func parsePrompt(text, today string, cats domain.CategorySet) string {
	return fmt.Sprintf(`Extract transaction details from this user text: %q.

Context:
- Today's date is %s.
- Available Income Categories: %s
- Available Expense Categories: %s

Instructions:
1. Determine if it is INCOME or EXPENSE.
2. Extract the amount (numeric value only).
3. Map the category to one of the Available Categories. If unsure, use %q.
4. Extract the date as YYYY-MM-DD relative to today. Default to today.
5. Extract a short description.

Return ONLY raw JSON with this structure:
{"amount": number, "type": "INCOME" | "EXPENSE", "category": "string", "date": "YYYY-MM-DD", "description": "string"}
`, text, today, strings.Join(cats.Income, ", "), strings.Join(cats.Expense, ", "), domain.FallbackCategory)
}

func advicePrompt(txs []domain.Transaction) string {
	var b strings.Builder
	b.WriteString("Bertindaklah sebagai penasihat keuangan untuk siswa sekolah.\n")
	b.WriteString("Berikut adalah riwayat transaksi siswa ini:\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "- %s: %s Rp%s (%s) - %s\n",
			t.Date.Format("2006-01-02"), t.Type, t.Amount.String(), t.Category, t.Description)
	}
	b.WriteString(`
Berikan analisis singkat (maksimal 3 paragraf pendek) tentang kebiasaan pengeluaran mereka.
Berikan 2 saran praktis dan spesifik untuk membantu mereka berhemat atau menabung lebih baik.
Gunakan bahasa yang santai, menyemangati, dan mudah dimengerti siswa.
Jika tidak ada data, berikan tips umum menabung untuk pelajar.
`)
	return b.String()
}

func categoryMatchPrompt(freeText string, candidates []string, fallback string) string {
	return fmt.Sprintf("Text: %q\nCategories: %s\nIf none fits, answer %q.",
		freeText, strings.Join(candidates, ", "), fallback)
}
